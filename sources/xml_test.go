package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xmlDocument = `<?xml version="1.0"?>
<export>
  <users>
    <user username="anna">
      <email>anna@example.com</email>
    </user>
    <user username="bob">
      <email>bob@example.com</email>
      <phone>123</phone>
      <phone>456</phone>
    </user>
  </users>
</export>`

func TestXmlSourceRows(t *testing.T) {
	var source = NewXmlDataSource([]byte(xmlDocument), "user")
	rows, err := source.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	value, err := rows[0].Field("username")
	require.NoError(t, err)
	assert.Equal(t, "anna", value, "an attribute resolves before child elements")

	value, err = rows[0].Field("email")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", value)

	_, err = rows[0].Field("phone")
	assert.ErrorContains(t, err, "does not exist")
}

func TestXmlSourceDuplicateChildIsError(t *testing.T) {
	var source = NewXmlDataSource([]byte(xmlDocument), "user")
	rows, err := source.Rows()
	require.NoError(t, err)

	_, err = rows[1].Field("phone")
	assert.ErrorContains(t, err, "more than one child element")
}

func TestXmlSourceRequiresRowElement(t *testing.T) {
	var _, err = NewXmlDataSource([]byte(xmlDocument), "").Rows()
	assert.ErrorContains(t, err, "'Query'")
}

func TestXmlSourceBadDocument(t *testing.T) {
	var _, err = NewXmlDataSource([]byte("<export><user></export>"), "user").Rows()
	assert.Error(t, err)
}

func TestXmlRowDebugString(t *testing.T) {
	var source = NewXmlDataSource([]byte(xmlDocument), "user")
	rows, err := source.Rows()
	require.NoError(t, err)

	var debug = rows[0].DebugString()
	assert.Contains(t, debug, "anna")
}
