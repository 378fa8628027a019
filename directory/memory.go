package directory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryDirectory is an in-process IUserDirectory. It backs unit tests and
// the CLI dry-run mode; lookups are case-insensitive on account names the
// way membership databases usually are.
type MemoryDirectory struct {
	mu      sync.Mutex
	domains map[string]struct{}
	roles   map[string]struct{}
	users   map[string]*User // lowercased full name
}

func NewMemoryDirectory(domains []string, roles []string) *MemoryDirectory {
	d := &MemoryDirectory{
		domains: make(map[string]struct{}),
		roles:   make(map[string]struct{}),
		users:   make(map[string]*User),
	}
	for _, domain := range domains {
		d.domains[strings.ToLower(domain)] = struct{}{}
	}
	for _, role := range roles {
		d.roles[role] = struct{}{}
	}
	return d
}

func (d *MemoryDirectory) DomainExists(domain string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.domains[strings.ToLower(domain)]
	return ok
}

func (d *MemoryDirectory) RoleExists(role string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.roles[role]
	return ok
}

func (d *MemoryDirectory) AddRoleDefinition(role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[role] = struct{}{}
}

func (d *MemoryDirectory) Exists(fullName string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[strings.ToLower(fullName)]
	return ok, nil
}

func (d *MemoryDirectory) ByName(fullName string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[strings.ToLower(fullName)]
	if !ok {
		return nil, fmt.Errorf("user %q does not exist", fullName)
	}
	return cloneUser(user), nil
}

func (d *MemoryDirectory) Create(fullName string, password string) (*User, error) {
	if password == "" {
		return nil, fmt.Errorf("cannot create user %q without a password", fullName)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(fullName)
	if _, ok := d.users[key]; ok {
		return nil, fmt.Errorf("user %q already exists", fullName)
	}
	domain, localName := SplitFullName(fullName)
	user := &User{
		Domain:    domain,
		LocalName: localName,
		Profile:   NewProfile(),
	}
	d.users[key] = user
	return cloneUser(user), nil
}

func (d *MemoryDirectory) Save(user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(user.FullName())
	if _, ok := d.users[key]; !ok {
		return fmt.Errorf("cannot save user %q: it does not exist", user.FullName())
	}
	d.users[key] = cloneUser(user)
	return nil
}

func (d *MemoryDirectory) Delete(user *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(user.FullName())
	if _, ok := d.users[key]; !ok {
		return fmt.Errorf("cannot delete user %q: it does not exist", user.FullName())
	}
	delete(d.users, key)
	return nil
}

func (d *MemoryDirectory) UsersInRoles(roles []string) (map[string]*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make(map[string]*User)
	for _, role := range roles {
		for _, user := range d.users {
			if user.IsInRole(role) {
				if _, ok := result[user.LocalName]; !ok {
					result[user.LocalName] = cloneUser(user)
				}
			}
		}
	}
	return result, nil
}

// AllLocalNames returns the local names of every user, sorted. Test helper.
func (d *MemoryDirectory) AllLocalNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for _, user := range d.users {
		names = append(names, user.LocalName)
	}
	sort.Strings(names)
	return names
}

func cloneUser(u *User) *User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	c.Profile = Profile{
		ProfileItemID: u.Profile.ProfileItemID,
		Properties:    make(map[string]any, len(u.Profile.Properties)),
		Custom:        make(map[string]string, len(u.Profile.Custom)),
	}
	for k, v := range u.Profile.Properties {
		c.Profile.Properties[k] = v
	}
	for k, v := range u.Profile.Custom {
		c.Profile.Custom[k] = v
	}
	return &c
}

// MemoryKeyedTable is the in-process KeyedTable used by tests and dry runs.
type MemoryKeyedTable struct {
	mu     sync.Mutex
	values map[string]map[string]string // field -> full name -> value
}

func NewMemoryKeyedTable() *MemoryKeyedTable {
	return &MemoryKeyedTable{values: make(map[string]map[string]string)}
}

func (t *MemoryKeyedTable) UsersFromKey(field string, keyValue string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var users []string
	for fullName, value := range t.values[field] {
		if value == keyValue {
			users = append(users, fullName)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (t *MemoryKeyedTable) KeyFromUser(field string, fullName string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.values[field][strings.ToLower(fullName)], nil
}

func (t *MemoryKeyedTable) UpdateKey(field string, keyValue string, fullName string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byUser, ok := t.values[field]
	if !ok {
		byUser = make(map[string]string)
		t.values[field] = byUser
	}
	key := strings.ToLower(fullName)
	if byUser[key] == keyValue {
		return false, nil
	}
	byUser[key] = keyValue
	return true, nil
}
