package directory

import "strings"

// Profile carries the persisted attributes of a directory user. Properties
// holds the well-known, typed profile properties; Custom is the open-ended
// custom property bag.
type Profile struct {
	ProfileItemID string
	Properties    map[string]any
	Custom        map[string]string
}

func NewProfile() Profile {
	return Profile{
		Properties: make(map[string]any),
		Custom:     make(map[string]string),
	}
}

func (p *Profile) CustomPropertyNames() []string {
	var names []string
	for name := range p.Custom {
		names = append(names, name)
	}
	return names
}

// User is one directory member. The directory backend owns its lifecycle;
// the import engine mutates the in-memory copy and persists it through
// IUserDirectory.Save.
type User struct {
	Domain    string
	LocalName string
	Roles     []string
	Profile   Profile
}

// FullName renders the domain-qualified account name, e.g. "extranet\\jdoe".
func (u *User) FullName() string {
	if u.Domain == "" {
		return u.LocalName
	}
	return u.Domain + "\\" + u.LocalName
}

func (u *User) IsInRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole reports whether the role set changed.
func (u *User) AddRole(role string) bool {
	if u.IsInRole(role) {
		return false
	}
	u.Roles = append(u.Roles, role)
	return true
}

// RemoveRole reports whether the role set changed.
func (u *User) RemoveRole(role string) bool {
	for i, r := range u.Roles {
		if r == role {
			u.Roles = append(u.Roles[:i], u.Roles[i+1:]...)
			return true
		}
	}
	return false
}

// DebugString is used in error log entries; never for persistence.
func (u *User) DebugString() string {
	if u == nil {
		return ""
	}
	return u.LocalName + " (" + u.FullName() + ")"
}

// SplitFullName splits a domain-qualified name into domain and local parts.
func SplitFullName(fullName string) (domain string, localName string) {
	if i := strings.Index(fullName, "\\"); i >= 0 {
		return fullName[:i], fullName[i+1:]
	}
	return "", fullName
}

// IUserDirectory is the external identity/membership store. Each call is a
// single round trip; no transaction spans more than one call.
type IUserDirectory interface {
	DomainExists(domain string) bool
	RoleExists(role string) bool

	Exists(fullName string) (bool, error)
	ByName(fullName string) (*User, error)
	Create(fullName string, password string) (*User, error)
	Save(user *User) error
	Delete(user *User) error

	// UsersInRoles returns the union of all members of the given roles,
	// keyed by local name.
	UsersInRoles(roles []string) (map[string]*User, error)
}

// KeyedTable is an external key-value table keyed by account name, one
// column per field. It backs the keyed-table storage strategy and the
// keyed user-key resolution.
type KeyedTable interface {
	// UsersFromKey returns the full names of all users whose column value
	// equals keyValue.
	UsersFromKey(field string, keyValue string) ([]string, error)
	// KeyFromUser returns the column value stored for the user, or "" when
	// none is stored.
	KeyFromUser(field string, fullName string) (string, error)
	// UpdateKey stores keyValue for the user and reports whether the stored
	// value actually changed.
	UpdateKey(field string, keyValue string, fullName string) (bool, error)
}
