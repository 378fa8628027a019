package usersync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"netlab.no/usersync/directory"
)

// TextMapping stores the joined import value as is.
type TextMapping struct {
	baseMapping
}

func NewTextMapping(src IConfigSource, env MappingEnv) (m IFieldMapping, err error) {
	var tm TextMapping
	if tm.baseMapping, err = loadBaseMapping(src, env); err != nil {
		return nil, err
	}
	return &tm, nil
}

func (m *TextMapping) ProcessImportedValue(importValue string) (string, error) {
	return importValue, nil
}

func (m *TextMapping) FillField(user *directory.User, importValue string) (bool, error) {
	return m.fillField(user, importValue, m.ProcessImportedValue)
}

// BooleanMapping maps the import value onto "1"/"0" by case-insensitive
// substring match against the configured tokens. The true token is checked
// first and wins when both match. Neither token matching yields the empty
// value: no assertion, the field is left untouched.
type BooleanMapping struct {
	baseMapping
	trueToken  string
	falseToken string
}

func NewBooleanMapping(src IConfigSource, env MappingEnv) (m IFieldMapping, err error) {
	var bm BooleanMapping
	if bm.baseMapping, err = loadBaseMapping(src, env); err != nil {
		return nil, err
	}
	bm.trueToken = strings.ToLower(src.Value("What String To Identify True Bool Value"))
	bm.falseToken = strings.ToLower(src.Value("What String To Identify False Bool Value"))
	if bm.trueToken == "" || bm.falseToken == "" {
		return nil, fmt.Errorf(
			"the field %q must configure both %q and %q to identify the boolean values",
			bm.targetField, "What String To Identify True Bool Value", "What String To Identify False Bool Value")
	}
	return &bm, nil
}

func (m *BooleanMapping) ProcessImportedValue(importValue string) (string, error) {
	if importValue != "" {
		var lower = strings.ToLower(importValue)
		if strings.Contains(lower, m.trueToken) {
			return "1", nil
		}
		if strings.Contains(lower, m.falseToken) {
			return "0", nil
		}
	}
	return "", nil
}

func (m *BooleanMapping) FillField(user *directory.User, importValue string) (bool, error) {
	return m.fillField(user, importValue, m.ProcessImportedValue)
}

// DateMapping parses the import value with the configured input format and
// renders it with the output format. Formats use the date token notation of
// the configuration source (yyyy, MM, dd, HH, mm, ss).
type DateMapping struct {
	baseMapping
	fromLayout string
	toLayout   string
}

// dateLayout translates a token-based date format into a reference layout.
// Longer tokens are listed first so MM is not consumed as two Ms.
var dateLayout = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"M", "1",
	"dd", "02",
	"d", "2",
	"HH", "15",
	"hh", "03",
	"mm", "04",
	"ss", "05",
	"tt", "PM",
)

func NewDateMapping(src IConfigSource, env MappingEnv) (m IFieldMapping, err error) {
	var dm DateMapping
	if dm.baseMapping, err = loadBaseMapping(src, env); err != nil {
		return nil, err
	}
	var from = src.Value("From What DateTime Format")
	var to = src.Value("To What DateTime Format")
	if from == "" || to == "" {
		return nil, fmt.Errorf(
			"the field %q must configure both %q and %q to reformat the date value",
			dm.targetField, "From What DateTime Format", "To What DateTime Format")
	}
	dm.fromLayout = dateLayout.Replace(from)
	dm.toLayout = dateLayout.Replace(to)
	return &dm, nil
}

func (m *DateMapping) ProcessImportedValue(importValue string) (string, error) {
	if importValue == "" {
		return "", nil
	}
	date, err := time.Parse(m.fromLayout, importValue)
	if err != nil {
		return "", fmt.Errorf(
			"the import value %q could not be parsed as a date with the configured input format. Error: %s",
			importValue, err)
	}
	return date.Format(m.toLayout), nil
}

func (m *DateMapping) FillField(user *directory.User, importValue string) (bool, error) {
	return m.fillField(user, importValue, m.ProcessImportedValue)
}

// NumberMapping accepts integer values within the configured inclusive
// bounds. The bounds default to the full integer range.
type NumberMapping struct {
	baseMapping
	min int64
	max int64
}

func NewNumberMapping(src IConfigSource, env MappingEnv) (m IFieldMapping, err error) {
	var nm = NumberMapping{min: -1 << 63, max: 1<<63 - 1}
	if nm.baseMapping, err = loadBaseMapping(src, env); err != nil {
		return nil, err
	}
	if raw := src.Value("Must Be Equal To or Higher Than"); raw != "" {
		if nm.min, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("the value for %q could not be parsed: %q", "Must Be Equal To or Higher Than", raw)
		}
	}
	if raw := src.Value("Must Be Equal To or Lower Than"); raw != "" {
		if nm.max, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("the value for %q could not be parsed: %q", "Must Be Equal To or Lower Than", raw)
		}
	}
	return &nm, nil
}

func (m *NumberMapping) ProcessImportedValue(importValue string) (string, error) {
	return importValue, nil
}

func (m *NumberMapping) FillField(user *directory.User, importValue string) (updated bool, err error) {
	if importValue == "" && !m.requiredOnImportRow {
		return false, nil
	}
	number, err := strconv.ParseInt(importValue, 10, 64)
	if err != nil {
		return false, fmt.Errorf(
			"the value %q could not be parsed as an integer. The field was not updated. FieldName: %s", importValue, m.targetField)
	}
	if number < m.min || number > m.max {
		return false, fmt.Errorf(
			"the value %q was outside the allowed range min: %d max: %d. The field was not updated. FieldName: %s",
			importValue, m.min, m.max, m.targetField)
	}
	return m.fillField(user, importValue, m.ProcessImportedValue)
}

const defaultEmailValidationRegex = `^[A-Za-z0-9](([_\.\-]?[a-zA-Z0-9]+)*)@([A-Za-z0-9]+)(([\.\-]?[a-zA-Z0-9]+)*)\.([A-Za-z]{2,4})$`

// EmailMapping validates the import value against a configurable pattern
// and optionally lowercases it before storage.
type EmailMapping struct {
	baseMapping
	pattern     *regexp.Regexp
	asLowerCase bool
}

func NewEmailMapping(src IConfigSource, env MappingEnv) (m IFieldMapping, err error) {
	var em EmailMapping
	if em.baseMapping, err = loadBaseMapping(src, env); err != nil {
		return nil, err
	}
	var pattern = src.Value("Email Validation Regex")
	if pattern == "" {
		pattern = defaultEmailValidationRegex
	}
	if em.pattern, err = regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("the value for %q could not be compiled as a regular expression: %s", "Email Validation Regex", err)
	}
	em.asLowerCase = configTrue(src.Value("Save Email As Lower Case"))
	return &em, nil
}

func (m *EmailMapping) ProcessImportedValue(importValue string) (string, error) {
	if m.asLowerCase {
		return strings.ToLower(importValue), nil
	}
	return importValue, nil
}

func (m *EmailMapping) FillField(user *directory.User, importValue string) (updated bool, err error) {
	if importValue == "" && !m.requiredOnImportRow {
		return false, nil
	}
	if !m.pattern.MatchString(importValue) {
		return false, fmt.Errorf(
			"the value %q is not a valid email. The field was not updated. FieldName: %s", importValue, m.targetField)
	}
	return m.fillField(user, importValue, m.ProcessImportedValue)
}

// ListItem is one entry of a configured lookup list.
type ListItem struct {
	ID          string
	DisplayName string
	Fields      map[string]string
}

// IListProvider resolves a configured list to its children. Definition
// files back it with their "lists" section through MapListProvider; a run
// can substitute its own provider.
type IListProvider interface {
	Children(listID string) ([]ListItem, error)
}

// MapListProvider holds the lists in memory, keyed by the lowercased list
// identifier.
type MapListProvider map[string][]ListItem

func (p MapListProvider) Children(listID string) ([]ListItem, error) {
	children, ok := p[strings.ToLower(listID)]
	if !ok {
		return nil, fmt.Errorf("the list %q is not defined", listID)
	}
	return children, nil
}

// ListLookupMapping resolves the import value against the children of a
// configured list and stores the identifier of the single match. With
// matchField empty the comparison runs on display names, otherwise on the
// named field's value; both case-insensitive.
type ListLookupMapping struct {
	baseMapping
	lists             IListProvider
	sourceList        string
	matchField        string
	doNotRequireMatch bool
}

func NewListLookupMapping(src IConfigSource, env MappingEnv) (IFieldMapping, error) {
	return newListLookup(src, env, false)
}

func NewListLookupByFieldMapping(src IConfigSource, env MappingEnv) (IFieldMapping, error) {
	return newListLookup(src, env, true)
}

func newListLookup(src IConfigSource, env MappingEnv, byField bool) (m IFieldMapping, err error) {
	var lm = ListLookupMapping{lists: env.Lists}
	if lm.baseMapping, err = loadBaseMapping(src, env); err != nil {
		return nil, err
	}
	lm.sourceList = src.Value("Source List")
	if lm.sourceList == "" {
		return nil, fmt.Errorf(
			"the %q was not provided for the field %q. Therefore it is not possible to match the import value against a list",
			"Source List", lm.targetField)
	}
	lm.doNotRequireMatch = configTrue(src.Value("Do Not Require Value Match"))
	if byField {
		lm.matchField = src.Value("Match On FieldName")
		if lm.matchField == "" {
			return nil, fmt.Errorf(
				"the %q was not provided for the field %q. Therefore it is not possible to match the import value against a list",
				"Match On FieldName", lm.targetField)
		}
	}
	if lm.lists == nil {
		return nil, fmt.Errorf("the field %q requires a list provider, but none is configured for this run", lm.targetField)
	}
	return &lm, nil
}

func (m *ListLookupMapping) matches(item ListItem, importValue string) bool {
	if m.matchField == "" {
		return strings.EqualFold(strings.TrimSpace(item.DisplayName), strings.TrimSpace(importValue))
	}
	// field names are matched case-insensitively; definition readers may
	// fold the item keys
	for name, value := range item.Fields {
		if strings.EqualFold(name, m.matchField) {
			return strings.EqualFold(value, importValue)
		}
	}
	return false
}

func (m *ListLookupMapping) ProcessImportedValue(importValue string) (string, error) {
	if importValue == "" {
		return "", nil
	}
	children, err := m.lists.Children(m.sourceList)
	if err != nil {
		return "", fmt.Errorf("resolving the list %q failed: %s", m.sourceList, err)
	}
	var matched []ListItem
	for _, item := range children {
		if m.matches(item, importValue) {
			matched = append(matched, item)
		}
	}
	if len(matched) > 1 {
		return "", fmt.Errorf(
			"a lookup of the list value resulted in more than one item. The field %q with the imported value %q was not updated. Count: %d",
			m.targetField, importValue, len(matched))
	}
	if len(matched) == 0 {
		if m.doNotRequireMatch {
			return "", nil
		}
		return "", fmt.Errorf(
			"a lookup of the list value resulted in no items and a value match is required. The field %q with the imported value %q was not updated",
			m.targetField, importValue)
	}
	return matched[0].ID, nil
}

func (m *ListLookupMapping) FillField(user *directory.User, importValue string) (bool, error) {
	return m.fillField(user, importValue, m.ProcessImportedValue)
}

// RoleFlagMapping toggles one role membership: the import value equal to
// the configured true token adds the role, anything else removes it. The
// role name is the mapping's target field.
type RoleFlagMapping struct {
	baseMapping
	dir       directory.IUserDirectory
	trueValue string
}

func NewRoleFlagMapping(src IConfigSource, env MappingEnv) (m IFieldMapping, err error) {
	var rm = RoleFlagMapping{
		dir: env.Directory,
		baseMapping: baseMapping{
			targetField:  src.Value("To What Field"),
			sourceFields: splitList(src.Value("From What Fields"), ","),
			delimiter:    src.Value("Delimiter"),
		},
	}
	rm.trueValue = src.Value("True Value")
	if rm.targetField == "" {
		return nil, fmt.Errorf("the role membership field has no role name configured in %q", "To What Field")
	}
	if len(rm.sourceFields) == 0 {
		return nil, fmt.Errorf("the field %q has no source fields configured in %q", rm.targetField, "From What Fields")
	}
	return &rm, nil
}

func (m *RoleFlagMapping) ProcessImportedValue(importValue string) (string, error) {
	return importValue, nil
}

// FillField bypasses the storage strategy: the role set on the user record
// is the target.
func (m *RoleFlagMapping) FillField(user *directory.User, importValue string) (updated bool, err error) {
	if !m.dir.RoleExists(m.targetField) {
		return false, fmt.Errorf("role %q does not exist", m.targetField)
	}
	var shouldBeMember = importValue != "" && strings.TrimSpace(importValue) == m.trueValue
	if shouldBeMember {
		return user.AddRole(m.targetField), nil
	}
	return user.RemoveRole(m.targetField), nil
}
