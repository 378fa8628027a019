package usersync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"netlab.no/usersync/directory"
)

// IConfigSource is a key-value accessor over an import definition. Keys are
// matched case-insensitively; a missing key yields the empty string.
type IConfigSource interface {
	Value(key string) string
}

// MapSource is an IConfigSource over a plain map, used by tests and by the
// per-field definitions embedded in a run definition file.
type MapSource struct {
	values map[string]string
}

func NewMapSource(values map[string]string) MapSource {
	var normalized = make(map[string]string, len(values))
	for k, v := range values {
		normalized[strings.ToLower(k)] = v
	}
	return MapSource{values: normalized}
}

func (s MapSource) Value(key string) string {
	return s.values[strings.ToLower(key)]
}

// ViperSource adapts a viper instance; viper already matches keys
// case-insensitively.
type ViperSource struct {
	v *viper.Viper
}

func NewViperSource(v *viper.Viper) ViperSource {
	return ViperSource{v: v}
}

func (s ViperSource) Value(key string) string {
	return s.v.GetString(key)
}

const defaultProfileItemID = "{AE4C4969-5B7E-4B4E-9042-B2D8701CE214}"

// ImportConfig carries the per-run settings. It is resolved once from an
// IConfigSource before the run and never mutated afterwards. Invalid
// settings append errors to the report; the run's precondition check then
// stops the import before any row is touched.
type ImportConfig struct {
	DataSource string
	Query      string

	MinimumNumberOfRowsRequiredToRunTheImport int
	ValidateImportDataBeforeProcessing        bool
	InValidationAllowDuplicatesInKey          bool
	LimitNumberOfImportRowsToWhatNumber       int
	StartOnWhatImportRowIndex                 int

	GetUsernameFromWhatField        string
	IdentifyUserUniqueFromWhatField string
	CreateUserInWhatSecurityDomain  string

	AddUserToWhatStandardRoles     []string
	GetPasswordFromWhatField       string
	AutogeneratePasswordWithLength int

	OnPresentInImportAddToRoles      []string
	OnPresentInImportRemoveFromRoles []string

	ProcessUsersNotPresentInImport               bool
	OnNotPresentInImportAddToRoles               []string
	OnNotPresentInImportRemoveFromRoles          []string
	DeleteUsersWithMembershipInStandardRolesOnly bool

	DoNotLogProgressStatusMessages bool

	SetProfileItemOnUser                bool
	UseWhatProfileItemID                string
	CheckThatPropertyExistOnUserProfile bool

	MailRecipients         string
	MailReplyTo            string
	MailSubject            string
	DoNotSendMailOnSuccess bool
}

func configTrue(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

// nonNegativeInt parses a setting as an int, clamping negatives to zero.
// An unparsable value falls back to zero without an error, matching the
// forgiving numeric handling of the window settings.
func nonNegativeInt(value string) int {
	var n, _ = strconv.Atoi(value)
	if n < 0 {
		n = 0
	}
	return n
}

// LoadImportConfig resolves every recognized setting from src. Soft
// configuration errors (missing username field, unknown roles, a bad
// domain) are appended to report; the returned config is still populated
// as far as possible so the caller can render a complete failure report.
func LoadImportConfig(src IConfigSource, dir directory.IUserDirectory, report *RunReport) *ImportConfig {
	var cfg = &ImportConfig{
		DataSource: src.Value("Data Source"),
		Query:      src.Value("Query"),

		MinimumNumberOfRowsRequiredToRunTheImport: nonNegativeInt(src.Value("Minimum Number Of Rows Required To Run The Import")),
		ValidateImportDataBeforeProcessing:        configTrue(src.Value("Validate Import Data Before Processing")),
		InValidationAllowDuplicatesInKey:          configTrue(src.Value("In Validation Allow Duplicates In Key")),
		LimitNumberOfImportRowsToWhatNumber:       nonNegativeInt(src.Value("Limit Number Of ImportRows To What Number")),
		StartOnWhatImportRowIndex:                 nonNegativeInt(src.Value("Start On What ImportRow Index")),

		GetUsernameFromWhatField:        src.Value("Get Username From What Field"),
		IdentifyUserUniqueFromWhatField: src.Value("Identify User Unique From What Field"),
		CreateUserInWhatSecurityDomain:  src.Value("Create User In What Security Domain"),

		GetPasswordFromWhatField:       src.Value("Get Password From What Field"),
		AutogeneratePasswordWithLength: 7,

		ProcessUsersNotPresentInImport:               configTrue(src.Value("Process Users Not Present In Import")),
		DeleteUsersWithMembershipInStandardRolesOnly: configTrue(src.Value("Delete Users With Membership In Standard Roles Only")),

		DoNotLogProgressStatusMessages: configTrue(src.Value("Do Not Log Progress Status Messages")),

		SetProfileItemOnUser:                configTrue(src.Value("Set ProfileItem On User")),
		UseWhatProfileItemID:                src.Value("Use What ProfileItemId"),
		CheckThatPropertyExistOnUserProfile: configTrue(src.Value("Check That Property Exist On User Profile")),

		MailRecipients:         src.Value("Mail Recipients"),
		MailReplyTo:            src.Value("Mail Reply To"),
		MailSubject:            src.Value("Mail Subject"),
		DoNotSendMailOnSuccess: configTrue(src.Value("Do Not Send Mail On Success")),
	}

	if cfg.GetUsernameFromWhatField == "" {
		report.AddError("Error", fmt.Sprintf(
			"The setting %q must contain a value that indicates which field to retrieve the username from.",
			"Get Username From What Field"))
	}

	if cfg.CreateUserInWhatSecurityDomain == "" {
		report.AddError("Error", fmt.Sprintf(
			"The initialization of the security domain failed. The value provided in the setting %q was empty.",
			"Create User In What Security Domain"))
	} else if !dir.DomainExists(cfg.CreateUserInWhatSecurityDomain) {
		report.AddError("Error", fmt.Sprintf(
			"The initialization of the security domain failed. The domain provided does not exist. The setting %q contains the value %q.",
			"Create User In What Security Domain", cfg.CreateUserInWhatSecurityDomain))
	}

	if raw := src.Value("Autogenerate Password With Length"); raw != "" {
		if length, err := strconv.Atoi(raw); err != nil {
			report.AddError("Error", fmt.Sprintf(
				"The setting %q must contain an integer that states the length of the password. Value: %s.",
				"Autogenerate Password With Length", raw))
		} else {
			cfg.AutogeneratePasswordWithLength = length
		}
	}

	cfg.AddUserToWhatStandardRoles = resolveRoles(src, dir, report, "Add User To What Standard Roles", false)
	cfg.OnPresentInImportAddToRoles = resolveRoles(src, dir, report, "On Present In Import Add To Roles", true)
	cfg.OnPresentInImportRemoveFromRoles = resolveRoles(src, dir, report, "On Present In Import Remove From Roles", false)
	cfg.OnNotPresentInImportAddToRoles = resolveRoles(src, dir, report, "On Not Present In Import Add To Roles", false)
	cfg.OnNotPresentInImportRemoveFromRoles = resolveRoles(src, dir, report, "On Not Present In Import Remove From Roles", false)

	return cfg
}

// resolveRoles parses a pipe-delimited role list and checks every role
// against the directory. Unknown roles are reported and skipped; a required
// list that ends up empty is itself an error.
func resolveRoles(src IConfigSource, dir directory.IUserDirectory, report *RunReport, setting string, required bool) (roles []string) {
	var value = src.Value(setting)
	if value == "" {
		if required {
			report.AddError("Error", fmt.Sprintf(
				"The role list in the setting %q was empty. This value is required. Please provide a pipe separated list of roles.",
				setting))
		}
		return nil
	}
	for _, roleName := range splitList(value, "|") {
		if !dir.RoleExists(roleName) {
			report.AddError("Error", fmt.Sprintf(
				"The specified role does not exist in the membership database. Please verify the value in the setting %q. Role: %s.",
				setting, roleName))
			continue
		}
		roles = append(roles, roleName)
	}
	if required && len(roles) == 0 {
		report.AddError("Error", fmt.Sprintf(
			"The role list in the setting %q did not resolve to any existing roles. This value is required.",
			setting))
	}
	return roles
}
