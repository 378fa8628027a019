package usersync

// Row is one opaque unit from the external data source. The engine and the
// field mappings only ever ask it for named field values and a debug string.
type Row interface {
	// Field returns the named field's value. An unknown field name is an
	// error; an empty value is not.
	Field(name string) (string, error)
	DebugString() string
}

// IRowSource produces the row batch for one run. The whole batch is
// materialized up front; there is no streaming.
type IRowSource interface {
	Rows() ([]Row, error)
}

// MapRow is a Row over a plain map, used by the SQL source and by tests.
type MapRow map[string]string

func (r MapRow) Field(name string) (string, error) {
	value, ok := r[name]
	if !ok {
		return "", fieldNotFoundError(name)
	}
	return value, nil
}

func (r MapRow) DebugString() (result string) {
	var first = true
	for _, name := range sortedKeys(r) {
		if r[name] == "" {
			continue
		}
		if !first {
			result += ", "
		}
		result += r[name]
		first = false
	}
	return
}
