package usersync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlab.no/usersync/directory"
)

func newFieldEnv() MappingEnv {
	return MappingEnv{
		Directory:  directory.NewMemoryDirectory([]string{"extranet"}, []string{"Extranet Users", "Premium"}),
		KeyedTable: directory.NewMemoryKeyedTable(),
	}
}

func newFieldUser() *directory.User {
	return &directory.User{
		Domain:    "extranet",
		LocalName: "jdoe",
		Profile:   directory.NewProfile(),
	}
}

func fieldSettings(extra map[string]string) IConfigSource {
	var values = map[string]string{
		"To What Field":         "FirstName",
		"From What Fields":      "firstname",
		"Field Storage Handler": "ProfileCustomProperty",
	}
	for k, v := range extra {
		values[k] = v
	}
	return NewMapSource(values)
}

func TestTextMappingFillField(t *testing.T) {
	mapping, err := NewTextMapping(fieldSettings(nil), newFieldEnv())
	require.NoError(t, err)

	var user = newFieldUser()
	updated, err := mapping.FillField(user, "John")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "John", user.Profile.Custom["FirstName"])

	updated, err = mapping.FillField(user, "John")
	require.NoError(t, err)
	assert.False(t, updated, "an identical value must not report an update")
}

func TestTextMappingRequiredOnImportRow(t *testing.T) {
	mapping, err := NewTextMapping(fieldSettings(map[string]string{
		"Is Required On ImportRow": "1",
	}), newFieldEnv())
	require.NoError(t, err)

	_, err = mapping.FillField(newFieldUser(), "")
	assert.ErrorContains(t, err, "required on the import row")
}

func TestTextMappingRequiredOnUser(t *testing.T) {
	mapping, err := NewTextMapping(fieldSettings(map[string]string{
		"Is Required On User": "1",
	}), newFieldEnv())
	require.NoError(t, err)

	_, err = mapping.FillField(newFieldUser(), "")
	assert.ErrorContains(t, err, "required on the user")
}

func TestBooleanMappingProcessImportedValue(t *testing.T) {
	mapping, err := NewBooleanMapping(fieldSettings(map[string]string{
		"What String To Identify True Bool Value":  "active",
		"What String To Identify False Bool Value": "inactive",
	}), newFieldEnv())
	require.NoError(t, err)

	var cases = []struct {
		in   string
		want string
	}{
		{"active", "1"},
		{"ACTIVE", "1"},
		{"inactive", "1"}, // contains the true token, and the true token wins
		{"disabled", ""},
		{"", ""},
	}
	for _, c := range cases {
		got, er1 := mapping.ProcessImportedValue(c.in)
		require.NoError(t, er1)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestBooleanMappingDistinctTokens(t *testing.T) {
	mapping, err := NewBooleanMapping(fieldSettings(map[string]string{
		"What String To Identify True Bool Value":  "yes",
		"What String To Identify False Bool Value": "no",
	}), newFieldEnv())
	require.NoError(t, err)

	got, err := mapping.ProcessImportedValue("no thanks")
	require.NoError(t, err)
	assert.Equal(t, "0", got)
}

func TestBooleanMappingRequiresBothTokens(t *testing.T) {
	var _, err = NewBooleanMapping(fieldSettings(map[string]string{
		"What String To Identify True Bool Value": "yes",
	}), newFieldEnv())
	assert.Error(t, err)
}

func TestDateMappingReformats(t *testing.T) {
	mapping, err := NewDateMapping(fieldSettings(map[string]string{
		"From What DateTime Format": "yyyy-MM-dd",
		"To What DateTime Format":   "dd/MM/yyyy",
	}), newFieldEnv())
	require.NoError(t, err)

	got, err := mapping.ProcessImportedValue("2020-01-15")
	require.NoError(t, err)
	assert.Equal(t, "15/01/2020", got)

	_, err = mapping.ProcessImportedValue("15.01.2020")
	assert.ErrorContains(t, err, "could not be parsed as a date")

	got, err = mapping.ProcessImportedValue("")
	require.NoError(t, err)
	assert.Equal(t, "", got, "an empty value is no assertion, not a parse error")
}

func TestNumberMappingBounds(t *testing.T) {
	mapping, err := NewNumberMapping(fieldSettings(map[string]string{
		"Must Be Equal To or Higher Than": "1",
		"Must Be Equal To or Lower Than":  "10",
	}), newFieldEnv())
	require.NoError(t, err)

	var user = newFieldUser()
	updated, err := mapping.FillField(user, "5")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "5", user.Profile.Custom["FirstName"])

	_, err = mapping.FillField(user, "11")
	assert.ErrorContains(t, err, "outside the allowed range")

	_, err = mapping.FillField(user, "abc")
	assert.ErrorContains(t, err, "could not be parsed as an integer")

	updated, err = mapping.FillField(user, "")
	require.NoError(t, err)
	assert.False(t, updated, "an empty optional value must be skipped")
}

func TestEmailMapping(t *testing.T) {
	mapping, err := NewEmailMapping(fieldSettings(map[string]string{
		"To What Field":            "Email",
		"Save Email As Lower Case": "1",
	}), newFieldEnv())
	require.NoError(t, err)

	var user = newFieldUser()
	updated, err := mapping.FillField(user, "John.Doe@Example.com")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, "john.doe@example.com", user.Profile.Custom["Email"])

	_, err = mapping.FillField(user, "not-an-email")
	assert.ErrorContains(t, err, "not a valid email")
}

type mapListProvider map[string][]ListItem

func (p mapListProvider) Children(listID string) ([]ListItem, error) {
	children, ok := p[listID]
	if !ok {
		return nil, fmt.Errorf("list %q does not exist", listID)
	}
	return children, nil
}

func TestListLookupMappingByDisplayName(t *testing.T) {
	var env = newFieldEnv()
	env.Lists = mapListProvider{
		"countries": {
			{ID: "{NO}", DisplayName: "Norway"},
			{ID: "{SE}", DisplayName: "Sweden"},
			{ID: "{DUP1}", DisplayName: "Doubled"},
			{ID: "{DUP2}", DisplayName: "Doubled"},
		},
	}
	mapping, err := NewListLookupMapping(fieldSettings(map[string]string{
		"To What Field": "Country",
		"Source List":   "countries",
	}), env)
	require.NoError(t, err)

	got, err := mapping.ProcessImportedValue("norway")
	require.NoError(t, err)
	assert.Equal(t, "{NO}", got)

	_, err = mapping.ProcessImportedValue("Doubled")
	assert.ErrorContains(t, err, "more than one item")

	_, err = mapping.ProcessImportedValue("Atlantis")
	assert.ErrorContains(t, err, "no items")
}

func TestListLookupMappingOptionalMatch(t *testing.T) {
	var env = newFieldEnv()
	env.Lists = mapListProvider{"countries": {{ID: "{NO}", DisplayName: "Norway"}}}
	mapping, err := NewListLookupMapping(fieldSettings(map[string]string{
		"To What Field":              "Country",
		"Source List":                "countries",
		"Do Not Require Value Match": "1",
	}), env)
	require.NoError(t, err)

	got, err := mapping.ProcessImportedValue("Atlantis")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestListLookupMappingByField(t *testing.T) {
	var env = newFieldEnv()
	env.Lists = mapListProvider{
		"countries": {
			{ID: "{NO}", DisplayName: "Norway", Fields: map[string]string{"IsoCode": "NO"}},
			{ID: "{SE}", DisplayName: "Sweden", Fields: map[string]string{"IsoCode": "SE"}},
		},
	}
	mapping, err := NewListLookupByFieldMapping(fieldSettings(map[string]string{
		"To What Field":      "Country",
		"Source List":        "countries",
		"Match On FieldName": "IsoCode",
	}), env)
	require.NoError(t, err)

	got, err := mapping.ProcessImportedValue("se")
	require.NoError(t, err)
	assert.Equal(t, "{SE}", got)
}

func TestRoleFlagMapping(t *testing.T) {
	var env = newFieldEnv()
	mapping, err := NewRoleFlagMapping(NewMapSource(map[string]string{
		"To What Field":    "Premium",
		"From What Fields": "premiumflag",
		"True Value":       "X",
	}), env)
	require.NoError(t, err)

	var user = newFieldUser()
	updated, err := mapping.FillField(user, "X")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.True(t, user.IsInRole("Premium"))

	updated, err = mapping.FillField(user, "X")
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = mapping.FillField(user, "")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.False(t, user.IsInRole("Premium"))
}

func TestRoleFlagMappingUnknownRole(t *testing.T) {
	mapping, err := NewRoleFlagMapping(NewMapSource(map[string]string{
		"To What Field":    "No Such Role",
		"From What Fields": "flag",
		"True Value":       "X",
	}), newFieldEnv())
	require.NoError(t, err)

	_, err = mapping.FillField(newFieldUser(), "X")
	assert.ErrorContains(t, err, "does not exist")
}

func TestRawValueJoinsSourceFields(t *testing.T) {
	mapping, err := NewTextMapping(fieldSettings(map[string]string{
		"From What Fields": "firstname, lastname",
		"Delimiter":        " ",
	}), newFieldEnv())
	require.NoError(t, err)

	got, err := RawValue(mapping, MapRow{"firstname": " John ", "lastname": "Doe"})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got)

	_, err = RawValue(mapping, MapRow{"firstname": "John"})
	assert.ErrorContains(t, err, "lastname")
}
