package usersync

import (
	"fmt"

	"netlab.no/usersync/directory"
)

// IKeyStrategy resolves the value that identifies a user uniquely, both
// from an import row and from an existing user, and answers reverse
// lookups. Exactly one strategy is active per run.
type IKeyStrategy interface {
	KeyFromRow(row Row) (string, error)
	KeyFromUser(user *directory.User) (string, error)
	// UsersByKey returns the existing users matching the key. More than one
	// result means the key is ambiguous; the caller treats that as an error.
	UsersByKey(key string) ([]*directory.User, error)
}

// UsernameKeyStrategy uses the username field of the row and the local name
// of the user as the key.
type UsernameKeyStrategy struct {
	dir           directory.IUserDirectory
	domain        string
	usernameField string
}

func NewUsernameKeyStrategy(dir directory.IUserDirectory, domain string, usernameField string) *UsernameKeyStrategy {
	return &UsernameKeyStrategy{dir: dir, domain: domain, usernameField: usernameField}
}

func (s *UsernameKeyStrategy) KeyFromRow(row Row) (string, error) {
	value, err := row.Field(s.usernameField)
	if err != nil {
		return "", fmt.Errorf("the username field %q did not resolve on the import row: %s", s.usernameField, err)
	}
	return value, nil
}

func (s *UsernameKeyStrategy) KeyFromUser(user *directory.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("the user was nil when trying to read its key")
	}
	return user.LocalName, nil
}

func (s *UsernameKeyStrategy) UsersByKey(key string) (users []*directory.User, err error) {
	var fullName = s.domain + "\\" + key
	exists, err := s.dir.Exists(fullName)
	if err != nil {
		return nil, fmt.Errorf("checking whether the user %q exists failed: %s", fullName, err)
	}
	if !exists {
		return nil, nil
	}
	user, err := s.dir.ByName(fullName)
	if err != nil {
		return nil, fmt.Errorf("the lookup of the user %q by its key failed: %s", fullName, err)
	}
	return []*directory.User{user}, nil
}

// KeyedLookupStrategy anchors identity on a dedicated keyed-table column:
// the key comes from the configured key mapping's source fields on the row
// side and from the table on the user side.
type KeyedLookupStrategy struct {
	dir     directory.IUserDirectory
	table   directory.KeyedTable
	mapping IFieldMapping
}

func NewKeyedLookupStrategy(dir directory.IUserDirectory, table directory.KeyedTable, mapping IFieldMapping) *KeyedLookupStrategy {
	return &KeyedLookupStrategy{dir: dir, table: table, mapping: mapping}
}

func (s *KeyedLookupStrategy) KeyFromRow(row Row) (string, error) {
	raw, err := RawValue(s.mapping, row)
	if err != nil {
		return "", err
	}
	return s.mapping.ProcessImportedValue(raw)
}

func (s *KeyedLookupStrategy) KeyFromUser(user *directory.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("the user was nil when trying to read its key")
	}
	value, err := s.table.KeyFromUser(s.mapping.TargetField(), user.FullName())
	if err != nil {
		return "", fmt.Errorf(
			"reading the key of user %s from column %q of the keyed table failed: %s",
			user.DebugString(), s.mapping.TargetField(), err)
	}
	return value, nil
}

func (s *KeyedLookupStrategy) UsersByKey(key string) (users []*directory.User, err error) {
	fullNames, err := s.table.UsersFromKey(s.mapping.TargetField(), key)
	if err != nil {
		return nil, fmt.Errorf(
			"the lookup of users by key %q in column %q of the keyed table failed: %s",
			key, s.mapping.TargetField(), err)
	}
	for _, fullName := range fullNames {
		user, er1 := s.dir.ByName(fullName)
		if er1 != nil {
			return nil, fmt.Errorf(
				"the keyed table resolved the key %q to the user %q, but the user could not be retrieved: %s",
				key, fullName, er1)
		}
		users = append(users, user)
	}
	return users, nil
}
