package usersync

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryUnknownIdentifiers(t *testing.T) {
	var _, err = CreateMapping("ToNothing", fieldSettings(nil), newFieldEnv())
	assert.ErrorContains(t, err, `unknown field mapping type "ToNothing"`)
	assert.ErrorContains(t, err, "ToText")

	_, err = CreateFieldStorage("NoSuchStorage", newFieldEnv())
	assert.ErrorContains(t, err, `unknown field storage type "NoSuchStorage"`)

	_, err = CreateSource("NoSuchSource", "", "")
	assert.ErrorContains(t, err, `unknown data source type "NoSuchSource"`)
}

func TestRegistryConcurrentRegisterAndCreate(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			RegisterSource(fmt.Sprintf("RacingSource%d", n), func(dataSource string, query string) (IRowSource, error) {
				return rowsSource{}, nil
			})
		}(i)
		go func() {
			defer wg.Done()
			var _, err = CreateMapping("ToText", fieldSettings(nil), newFieldEnv())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
