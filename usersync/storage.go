package usersync

import (
	"fmt"

	"netlab.no/usersync/directory"
)

// IFieldStorage persists one mapped value on a user. Implementations only
// report updated=true when the stored value actually changed, so a repeated
// identical import never triggers spurious persistence.
type IFieldStorage interface {
	FillField(user *directory.User, fieldName string, value string, requiredOnUser bool) (updated bool, err error)
}

// ProfilePropertyStorage writes to the well-known, typed profile
// properties. A property that already holds a non-string value is an error;
// an absent property is only an error when existence checking is on.
type ProfilePropertyStorage struct {
	CheckThatPropertyExist bool
}

func (s *ProfilePropertyStorage) FillField(user *directory.User, fieldName string, value string, requiredOnUser bool) (updated bool, err error) {
	existing, ok := user.Profile.Properties[fieldName]
	if !ok {
		if s.CheckThatPropertyExist {
			return false, fmt.Errorf(
				"the profile does not contain a property named %q. This property must exist on the user. User: %s. Value: %q",
				fieldName, user.DebugString(), value)
		}
		user.Profile.Properties[fieldName] = value
		return true, nil
	}
	existingText, ok := existing.(string)
	if !ok {
		return false, fmt.Errorf(
			"the property %q on the user profile was not of type string. Therefore the field could not be filled. User: %s. Value: %q",
			fieldName, user.DebugString(), value)
	}
	if existingText == value {
		return false, nil
	}
	user.Profile.Properties[fieldName] = value
	return true, nil
}

// CustomPropertyStorage writes to the open-ended custom property bag.
type CustomPropertyStorage struct {
	CheckThatPropertyExist bool
}

func (s *CustomPropertyStorage) FillField(user *directory.User, fieldName string, value string, requiredOnUser bool) (updated bool, err error) {
	if s.CheckThatPropertyExist {
		var found bool
		for _, name := range user.Profile.CustomPropertyNames() {
			if name == fieldName {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Errorf(
				"the profile does not contain a custom property named %q. User: %s. Value: %q",
				fieldName, user.DebugString(), value)
		}
	}
	if user.Profile.Custom[fieldName] == value {
		return false, nil
	}
	user.Profile.Custom[fieldName] = value
	return true, nil
}

// keyedTableMaxValueLength is the column width of the backing table.
const keyedTableMaxValueLength = 16

// KeyedTableStorage round-trips through an external keyed table. The write
// happens immediately against the table, not on the user record, so the
// per-row Save is not involved. The value must be unique across users.
type KeyedTableStorage struct {
	Table directory.KeyedTable
}

func (s *KeyedTableStorage) FillField(user *directory.User, fieldName string, value string, requiredOnUser bool) (updated bool, err error) {
	if value == "" {
		return false, fmt.Errorf(
			"the keyed table update failed because the value was empty. The value must be unique. Field: %q. User: %s",
			fieldName, user.DebugString())
	}
	if len(value) > keyedTableMaxValueLength {
		return false, fmt.Errorf(
			"the keyed table update failed because the value was more than %d characters, which is the limit of the column. Field: %q. Value: %q. User: %s",
			keyedTableMaxValueLength, fieldName, value, user.DebugString())
	}

	users, err := s.Table.UsersFromKey(fieldName, value)
	if err != nil {
		return false, fmt.Errorf(
			"looking up existing users by value in the keyed table failed. Field: %q. Value: %q. User: %s. Error: %s",
			fieldName, value, user.DebugString(), err)
	}
	if len(users) > 1 {
		return false, fmt.Errorf(
			"duplicate values were found in the column %q of the keyed table. The value must be unique. Value: %q. User: %s",
			fieldName, value, user.DebugString())
	}
	if len(users) == 1 && !equalFullName(users[0], user.FullName()) {
		return false, fmt.Errorf(
			"a key with the same value in column %q was found on another user. The value must be unique. Found on: %s. Current user: %s. Value: %q",
			fieldName, users[0], user.DebugString(), value)
	}

	updated, err = s.Table.UpdateKey(fieldName, value, user.FullName())
	if err != nil {
		return false, fmt.Errorf(
			"the update of column %q in the keyed table failed. Value: %q. User: %s. Error: %s",
			fieldName, value, user.DebugString(), err)
	}
	return updated, nil
}
