package usersync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/spf13/viper"

	"netlab.no/usersync/directory"
)

// RunDefinition is one import definition: the run settings plus the
// ordered field definitions. It is the file-format-independent shape both
// entry points hand to BuildRun.
type RunDefinition struct {
	Settings IConfigSource
	Fields   []FieldDefinition
	// Lists carries the lookup lists defined alongside the fields; nil
	// when the definition has none.
	Lists IListProvider
}

// FieldDefinition carries one field mapping's type identifier and its
// settings.
type FieldDefinition struct {
	Mapping  string
	Settings IConfigSource
}

// LoadRunDefinition reads a definition from a viper instance: a "settings"
// section with the run settings, a "fields" list where every entry
// carries its own "Handler Class" naming the mapping type, and an optional
// "lists" section with the lookup lists the list mappings match against.
func LoadRunDefinition(v *viper.Viper) (*RunDefinition, error) {
	var settings = v.Sub("settings")
	if settings == nil {
		return nil, fmt.Errorf("the import definition has no 'settings' section")
	}
	var def = &RunDefinition{Settings: NewViperSource(settings)}

	fields, ok := v.Get("fields").([]interface{})
	if v.IsSet("fields") && !ok {
		return nil, fmt.Errorf("the 'fields' section of the import definition must be a list")
	}
	for i, entry := range fields {
		values, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("the field definition at index %d is not a settings map", i)
		}
		var stringValues = make(map[string]string, len(values))
		for key, value := range values {
			stringValues[key] = settingText(value)
		}
		var src = NewMapSource(stringValues)
		var mapping = src.Value("Handler Class")
		if mapping == "" {
			return nil, fmt.Errorf("the field definition at index %d has no 'Handler Class' value naming the mapping type", i)
		}
		def.Fields = append(def.Fields, FieldDefinition{Mapping: mapping, Settings: src})
	}

	if v.IsSet("lists") {
		lists, err := loadLists(v.Get("lists"))
		if err != nil {
			return nil, err
		}
		def.Lists = lists
	}
	return def, nil
}

// loadLists reads the "lists" section: a map of list identifier to item
// list. An item's "ID" and "Display Name" entries fill the item header;
// every other entry becomes a matchable item field.
func loadLists(raw interface{}) (MapListProvider, error) {
	section, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("the 'lists' section of the import definition must map list names to item lists")
	}
	var lists = make(MapListProvider, len(section))
	for name, rawItems := range section {
		items, ok := rawItems.([]interface{})
		if !ok {
			return nil, fmt.Errorf("the list %q must be a list of items", name)
		}
		for i, entry := range items {
			values, ok := entry.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("the item at index %d of the list %q is not a settings map", i, name)
			}
			var item = ListItem{Fields: make(map[string]string)}
			for key, value := range values {
				switch strings.ToLower(key) {
				case "id":
					item.ID = settingText(value)
				case "display name":
					item.DisplayName = settingText(value)
				default:
					item.Fields[key] = settingText(value)
				}
			}
			if item.ID == "" {
				item.ID = item.DisplayName
			}
			var listID = strings.ToLower(name)
			lists[listID] = append(lists[listID], item)
		}
	}
	return lists, nil
}

// settingText renders a decoded definition value as setting text. Booleans
// become "1"/"0" so configTrue recognizes them regardless of how the file
// format spells its booleans.
func settingText(value interface{}) string {
	if sv, ok := toString(value); ok {
		return sv
	}
	if bv, ok := toBoolean(value); ok {
		if bv {
			return "1"
		}
		return "0"
	}
	if iv, ok := toInt64(value); ok {
		return strconv.FormatInt(iv, 10)
	}
	return fmt.Sprint(value)
}

// RunCollaborators are the external systems one run works against. Only
// the directory is mandatory; a missing keyed table or list provider is an
// error only when a configured field actually needs it. A nil Lists falls
// back to the definition's own lists.
type RunCollaborators struct {
	Directory  directory.IUserDirectory
	KeyedTable directory.KeyedTable
	Lists      IListProvider
	Source     IRowSource
	Logger     log.Logger
}

// BuildRun resolves a definition into a ready DataMap. Configuration
// problems are appended to the returned report; the run's precondition
// check then refuses to start, so the caller always gets a DataMap and a
// report to render or mail.
func BuildRun(def *RunDefinition, collab RunCollaborators, identifier string) (*DataMap, *RunReport) {
	var report = NewRunReport()
	var cfg = LoadImportConfig(def.Settings, collab.Directory, report)

	var lists = collab.Lists
	if lists == nil {
		lists = def.Lists
	}
	var env = MappingEnv{
		Directory:              collab.Directory,
		KeyedTable:             collab.KeyedTable,
		Lists:                  lists,
		CheckThatPropertyExist: cfg.CheckThatPropertyExistOnUserProfile,
	}
	var mappings []IFieldMapping
	for _, field := range def.Fields {
		mapping, err := CreateMapping(field.Mapping, field.Settings, env)
		if err != nil {
			report.AddError("Error", fmt.Sprintf(
				"The initialization of the field mapping targeting %q failed. Error: %s",
				field.Settings.Value("To What Field"), err))
			continue
		}
		mappings = append(mappings, mapping)
	}

	var source = collab.Source
	if source == nil {
		var err error
		if source, err = CreateSource(def.Settings.Value("Handler Class"), cfg.DataSource, cfg.Query); err != nil {
			report.AddError("Error", fmt.Sprintf("The initialization of the data source failed. Error: %s", err))
		}
	}

	var keys = ResolveKeyStrategy(cfg, collab.Directory, collab.KeyedTable, mappings, report)

	return NewDataMap(cfg, collab.Directory, source, mappings, keys, report, collab.Logger, identifier), report
}
