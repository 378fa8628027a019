package usersync

import (
	"fmt"
	"strings"

	"netlab.no/usersync/directory"
)

// IFieldMapping is one configured column rule: it pulls one or more source
// fields from an import row, transforms the joined value and persists it
// through its storage strategy.
type IFieldMapping interface {
	// TargetField is the identity attribute the value lands in.
	TargetField() string
	SourceFields() []string
	Delimiter() string

	// ProcessImportedValue transforms the raw joined value into the value
	// to store. An empty result with a nil error means "no assertion"; the
	// field is left untouched.
	ProcessImportedValue(importValue string) (string, error)

	// FillField runs the full pipeline for one row: required checks,
	// transform and storage delegation. The field is never persisted when
	// an error is returned.
	FillField(user *directory.User, importValue string) (updated bool, err error)
}

// MappingEnv carries the collaborators a mapping may need. It is assembled
// once per run and handed to every mapping constructor.
type MappingEnv struct {
	Directory              directory.IUserDirectory
	KeyedTable             directory.KeyedTable
	Lists                  IListProvider
	CheckThatPropertyExist bool
}

// baseMapping holds the settings shared by every mapping variant and the
// shared required/transform/store pipeline. Variants embed it and supply
// their transform.
type baseMapping struct {
	targetField         string
	sourceFields        []string
	delimiter           string
	requiredOnImportRow bool
	requiredOnUser      bool
	storage             IFieldStorage
}

func loadBaseMapping(src IConfigSource, env MappingEnv) (m baseMapping, err error) {
	m = baseMapping{
		targetField:         src.Value("To What Field"),
		sourceFields:        splitList(src.Value("From What Fields"), ","),
		delimiter:           src.Value("Delimiter"),
		requiredOnImportRow: configTrue(src.Value("Is Required On ImportRow")),
		requiredOnUser:      configTrue(src.Value("Is Required On User")),
	}
	if len(m.sourceFields) == 0 {
		return m, fmt.Errorf("the field %q has no source fields configured in %q", m.targetField, "From What Fields")
	}
	var storageID = src.Value("Field Storage Handler")
	if storageID == "" {
		return m, fmt.Errorf("the field %q has no value in %q. A storage handler is required to save the value to the user", m.targetField, "Field Storage Handler")
	}
	if m.storage, err = CreateFieldStorage(storageID, env); err != nil {
		return m, fmt.Errorf("the field %q could not resolve its storage handler: %s", m.targetField, err)
	}
	return m, nil
}

func (m *baseMapping) TargetField() string    { return m.targetField }
func (m *baseMapping) SourceFields() []string { return m.sourceFields }
func (m *baseMapping) Delimiter() string      { return m.delimiter }

// fillField is the shared pipeline: reject an empty import value when the
// field is required on the row, transform, reject an empty result when
// required on the user, then delegate to the storage strategy. process is
// the variant's transform.
func (m *baseMapping) fillField(user *directory.User, importValue string, process func(string) (string, error)) (updated bool, err error) {
	if m.requiredOnImportRow && importValue == "" {
		return false, fmt.Errorf(
			"the imported value was empty. A value must be provided when the field is marked as required on the import row. The field was not updated. User: %s. FieldName: %s",
			user.DebugString(), m.targetField)
	}
	value, err := process(importValue)
	if err != nil {
		return false, fmt.Errorf(
			"processing the imported value resulted in an error. The field was not updated. User: %s. FieldName: %s. ImportValue: %q. Error: %s",
			user.DebugString(), m.targetField, importValue, err)
	}
	if value == "" {
		if m.requiredOnUser {
			return false, fmt.Errorf(
				"the processed value was empty. The value cannot be empty when the field is marked as required on the user. The field was not updated. User: %s. FieldName: %s. ImportValue: %q",
				user.DebugString(), m.targetField, importValue)
		}
		return false, nil
	}
	if updated, err = m.storage.FillField(user, m.targetField, value, m.requiredOnUser); err != nil {
		return false, fmt.Errorf(
			"an error occurred trying to fill the field with a value. The field was not updated. Error: %s", err)
	}
	return updated, nil
}

// RawValue extracts and joins the mapping's source field values from a row.
// Values are trimmed; the configured delimiter separates them.
func RawValue(m IFieldMapping, row Row) (string, error) {
	var values []string
	var errText string
	for _, name := range m.SourceFields() {
		value, err := row.Field(name)
		if err != nil {
			errText += err.Error() + ". "
			values = append(values, "")
			continue
		}
		values = append(values, strings.TrimSpace(value))
	}
	if errText != "" {
		return "", fmt.Errorf("extracting the source field values failed: %s", errText)
	}
	return strings.Join(values, m.Delimiter()), nil
}
