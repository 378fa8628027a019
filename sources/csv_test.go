package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvSourceRows(t *testing.T) {
	var data = []byte("username;email\nanna;anna@example.com\nbob;bob@example.com\n")
	var source = NewCsvDataSource(data, ";")

	rows, err := source.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	value, err := rows[0].Field("username")
	require.NoError(t, err)
	assert.Equal(t, "anna", value)

	value, err = rows[1].Field("email")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", value)

	_, err = rows[0].Field("nosuchfield")
	assert.Error(t, err)
}

func TestCsvSourcePadsShortRows(t *testing.T) {
	var data = []byte("username,email,phone\nanna,anna@example.com\n")
	var source = NewCsvDataSource(data, ",")

	rows, err := source.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	value, err := rows[0].Field("phone")
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestCsvSourceDefaultsToComma(t *testing.T) {
	var source = NewCsvDataSource([]byte("a,b\n1,2\n"), "")
	rows, err := source.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	value, err := rows[0].Field("b")
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}

func TestCsvSourceUtf8Bom(t *testing.T) {
	var data = append(append([]byte{}, bomUTF8...), []byte("username\nanna\n")...)
	rows, err := NewCsvDataSource(data, ",").Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	value, err := rows[0].Field("username")
	require.NoError(t, err)
	assert.Equal(t, "anna", value, "the BOM must not leak into the header name")
}

func TestCsvSourceEmptyData(t *testing.T) {
	var _, err = NewCsvDataSource(nil, ",").Rows()
	assert.ErrorContains(t, err, "no header row")
}

func TestCsvFileSource(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("username\nanna\n"), 0o600))

	rows, err := NewCsvFileSource(path, ",").Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = NewCsvFileSource(filepath.Join(t.TempDir(), "missing.csv"), ",").Rows()
	assert.ErrorContains(t, err, "reading the file")
}
