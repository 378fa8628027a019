package usersync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlab.no/usersync/directory"
)

func TestUsernameKeyStrategy(t *testing.T) {
	var dir = directory.NewMemoryDirectory([]string{"extranet"}, nil)
	var strategy = NewUsernameKeyStrategy(dir, "extranet", "username")

	key, err := strategy.KeyFromRow(MapRow{"username": "jdoe"})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", key)

	_, err = strategy.KeyFromRow(MapRow{"login": "jdoe"})
	assert.Error(t, err, "a missing username field must not resolve a key")

	users, err := strategy.UsersByKey("jdoe")
	require.NoError(t, err)
	assert.Empty(t, users)

	created, err := dir.Create("extranet\\jdoe", "secret1")
	require.NoError(t, err)

	users, err = strategy.UsersByKey("jdoe")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jdoe", users[0].LocalName)

	key, err = strategy.KeyFromUser(created)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", key)
}

func TestKeyedLookupStrategy(t *testing.T) {
	var dir = directory.NewMemoryDirectory([]string{"extranet"}, nil)
	var table = directory.NewMemoryKeyedTable()
	var env = MappingEnv{Directory: dir, KeyedTable: table}

	mapping, err := NewTextMapping(NewMapSource(map[string]string{
		"To What Field":         "EmployeeId",
		"From What Fields":      "employeeid",
		"Field Storage Handler": "KeyedTableColumn",
	}), env)
	require.NoError(t, err)

	var strategy = NewKeyedLookupStrategy(dir, table, mapping)

	key, err := strategy.KeyFromRow(MapRow{"employeeid": " E-1001 "})
	require.NoError(t, err)
	assert.Equal(t, "E-1001", key)

	users, err := strategy.UsersByKey("E-1001")
	require.NoError(t, err)
	assert.Empty(t, users)

	user, err := dir.Create("extranet\\jdoe", "secret1")
	require.NoError(t, err)
	_, err = table.UpdateKey("EmployeeId", "E-1001", user.FullName())
	require.NoError(t, err)

	users, err = strategy.UsersByKey("E-1001")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jdoe", users[0].LocalName)

	key, err = strategy.KeyFromUser(user)
	require.NoError(t, err)
	assert.Equal(t, "E-1001", key)
}
