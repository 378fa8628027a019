package usersync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func fieldNotFoundError(name string) error {
	return fmt.Errorf("the field name %q does not exist in the import row", name)
}

func equalFullName(a string, b string) bool {
	return strings.EqualFold(a, b)
}

func sortedKeys(m map[string]string) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// splitList splits a delimited setting value, dropping empty entries.
func splitList(value string, sep string) (result []string) {
	for _, part := range strings.Split(value, sep) {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			result = append(result, part)
		}
	}
	return
}

func toBoolean(intf any) (result bool, ok bool) {
	if intf == nil {
		return
	}
	var supportedValue any
	switch fv := intf.(type) {
	case bool, string:
		supportedValue = fv
	case []any:
		if len(fv) > 0 {
			switch fv[0].(type) {
			case bool, string:
				supportedValue = fv[0]
			}
		}
	}
	if supportedValue != nil {
		switch fv := supportedValue.(type) {
		case bool:
			result = fv
			ok = true
		case string:
			switch strings.ToLower(fv) {
			case "1", "true", "ok":
				result = true
				ok = true
			case "0", "false":
				result = false
				ok = true
			}
		}
	}
	return
}

func toString(intf any) (result string, ok bool) {
	if intf == nil {
		return
	}
	result, ok = intf.(string)
	return
}

func toInt64(intf interface{}) (result int64, ok bool) {
	if intf == nil {
		return
	}
	ok = true
	switch iv := intf.(type) {
	case int:
		result = int64(iv)
	case uint:
		result = int64(iv)
	case int8:
		result = int64(iv)
	case uint8:
		result = int64(iv)
	case int16:
		result = int64(iv)
	case uint16:
		result = int64(iv)
	case int32:
		result = int64(iv)
	case uint32:
		result = int64(iv)
	case int64:
		result = iv
	case uint64:
		result = int64(iv)
	case float32:
		result = int64(iv)
	case float64:
		result = int64(iv)
	case string:
		if irv, err := strconv.Atoi(iv); err == nil {
			result = int64(irv)
		} else {
			ok = false
		}
	default:
		ok = false
	}
	return
}

type Set[K comparable] map[K]struct{}

func NewSet[K comparable]() Set[K] {
	return make(Set[K])
}
func MakeSet[K comparable](keys []K) Set[K] {
	var ns = NewSet[K]()
	for _, k := range keys {
		ns.Add(k)
	}
	return ns
}
func (s Set[K]) Has(key K) (ok bool) {
	_, ok = s[key]
	return
}
func (s Set[K]) Add(key K) {
	s[key] = struct{}{}
}
