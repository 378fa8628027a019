package usersync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlab.no/usersync/directory"
)

func configDir() directory.IUserDirectory {
	return directory.NewMemoryDirectory([]string{"extranet"}, []string{"Extranet Users", "Premium"})
}

func TestLoadImportConfig(t *testing.T) {
	var report = NewRunReport()
	var cfg = LoadImportConfig(NewMapSource(map[string]string{
		"Data Source": "/data/users.csv",
		"Query":       ";",
		"Minimum Number Of Rows Required To Run The Import": "10",
		"Validate Import Data Before Processing":            "1",
		"Limit Number Of ImportRows To What Number":         "100",
		"Start On What ImportRow Index":                     "5",
		"Get Username From What Field":                      "username",
		"Create User In What Security Domain":               "extranet",
		"Add User To What Standard Roles":                   "Extranet Users",
		"On Present In Import Add To Roles":                 "Extranet Users|Premium",
		"Autogenerate Password With Length":                 "12",
		"Mail Recipients":                                   "ops@netlab.no",
	}), configDir(), report)

	assert.False(t, report.HasErrors(), report.ErrorText())
	assert.Equal(t, "/data/users.csv", cfg.DataSource)
	assert.Equal(t, 10, cfg.MinimumNumberOfRowsRequiredToRunTheImport)
	assert.True(t, cfg.ValidateImportDataBeforeProcessing)
	assert.Equal(t, 100, cfg.LimitNumberOfImportRowsToWhatNumber)
	assert.Equal(t, 5, cfg.StartOnWhatImportRowIndex)
	assert.Equal(t, "username", cfg.GetUsernameFromWhatField)
	assert.Equal(t, 12, cfg.AutogeneratePasswordWithLength)
	assert.Equal(t, []string{"Extranet Users"}, cfg.AddUserToWhatStandardRoles)
	assert.Equal(t, []string{"Extranet Users", "Premium"}, cfg.OnPresentInImportAddToRoles)
}

func TestLoadImportConfigKeysAreCaseInsensitive(t *testing.T) {
	var report = NewRunReport()
	var cfg = LoadImportConfig(NewMapSource(map[string]string{
		"get username from what field":        "username",
		"CREATE USER IN WHAT SECURITY DOMAIN": "extranet",
		"On Present In Import Add To Roles":   "Extranet Users",
	}), configDir(), report)

	assert.False(t, report.HasErrors(), report.ErrorText())
	assert.Equal(t, "username", cfg.GetUsernameFromWhatField)
	assert.Equal(t, "extranet", cfg.CreateUserInWhatSecurityDomain)
}

func TestLoadImportConfigDefaultPasswordLength(t *testing.T) {
	var report = NewRunReport()
	var cfg = LoadImportConfig(NewMapSource(map[string]string{
		"Get Username From What Field":        "username",
		"Create User In What Security Domain": "extranet",
		"On Present In Import Add To Roles":   "Extranet Users",
	}), configDir(), report)

	assert.Equal(t, 7, cfg.AutogeneratePasswordWithLength)
}

func TestLoadImportConfigMissingUsernameField(t *testing.T) {
	var report = NewRunReport()
	LoadImportConfig(NewMapSource(map[string]string{
		"Create User In What Security Domain": "extranet",
		"On Present In Import Add To Roles":   "Extranet Users",
	}), configDir(), report)

	assert.Contains(t, report.ErrorText(), "Get Username From What Field")
}

func TestLoadImportConfigUnknownDomain(t *testing.T) {
	var report = NewRunReport()
	LoadImportConfig(NewMapSource(map[string]string{
		"Get Username From What Field":        "username",
		"Create User In What Security Domain": "intranet",
		"On Present In Import Add To Roles":   "Extranet Users",
	}), configDir(), report)

	assert.Contains(t, report.ErrorText(), "domain provided does not exist")
}

func TestLoadImportConfigUnknownRole(t *testing.T) {
	var report = NewRunReport()
	var cfg = LoadImportConfig(NewMapSource(map[string]string{
		"Get Username From What Field":        "username",
		"Create User In What Security Domain": "extranet",
		"On Present In Import Add To Roles":   "Extranet Users",
		"Add User To What Standard Roles":     "Extranet Users|No Such Role",
	}), configDir(), report)

	assert.Contains(t, report.ErrorText(), "No Such Role")
	assert.Equal(t, []string{"Extranet Users"}, cfg.AddUserToWhatStandardRoles,
		"the unknown role must be skipped, the known one kept")
}

func TestLoadImportConfigRequiredRoleList(t *testing.T) {
	var report = NewRunReport()
	LoadImportConfig(NewMapSource(map[string]string{
		"Get Username From What Field":        "username",
		"Create User In What Security Domain": "extranet",
	}), configDir(), report)

	assert.Contains(t, report.ErrorText(), "On Present In Import Add To Roles")
}

func TestLoadImportConfigBadPasswordLength(t *testing.T) {
	var report = NewRunReport()
	LoadImportConfig(NewMapSource(map[string]string{
		"Get Username From What Field":        "username",
		"Create User In What Security Domain": "extranet",
		"On Present In Import Add To Roles":   "Extranet Users",
		"Autogenerate Password With Length":   "long",
	}), configDir(), report)

	assert.Contains(t, report.ErrorText(), "Autogenerate Password With Length")
}

func TestMapSourceMissingKey(t *testing.T) {
	var src = NewMapSource(map[string]string{"Query": "select 1"})
	require.Equal(t, "select 1", src.Value("query"))
	assert.Equal(t, "", src.Value("Data Source"))
}
