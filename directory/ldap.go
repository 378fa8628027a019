package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// LdapParameters describes how to reach the directory server. Every call
// dials its own connection and closes it before returning; there is no
// pooling and no transaction spanning two calls.
type LdapParameters struct {
	Url      string
	BindDn   string
	BindPass string
	// UserBase and RoleBase are the containers users and role groups live
	// under, e.g. "ou=users,dc=netlab,dc=no".
	UserBase string
	RoleBase string
	// Domain is the logical security domain this server represents; full
	// names are "<Domain>\\<uid>".
	Domain string
}

type ldapDirectory struct {
	params LdapParameters
}

func NewLdapDirectory(params LdapParameters) IUserDirectory {
	return &ldapDirectory{params: params}
}

func (ld *ldapDirectory) dial() (conn *ldap.Conn, err error) {
	if conn, err = ldap.DialURL(ld.params.Url); err != nil {
		return nil, fmt.Errorf("ldap dial %q error: %s", ld.params.Url, err)
	}
	if err = conn.Bind(ld.params.BindDn, ld.params.BindPass); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ldap bind as %q error: %s", ld.params.BindDn, err)
	}
	return conn, nil
}

func (ld *ldapDirectory) userDn(localName string) string {
	return fmt.Sprintf("uid=%s,%s", ldap.EscapeDN(localName), ld.params.UserBase)
}

func (ld *ldapDirectory) roleDn(role string) string {
	return fmt.Sprintf("cn=%s,%s", ldap.EscapeDN(role), ld.params.RoleBase)
}

func (ld *ldapDirectory) DomainExists(domain string) bool {
	return strings.EqualFold(domain, ld.params.Domain)
}

func (ld *ldapDirectory) RoleExists(role string) bool {
	var conn, err = ld.dial()
	if err != nil {
		return false
	}
	defer conn.Close()
	var req = ldap.NewSearchRequest(ld.roleDn(role), ldap.ScopeBaseObject,
		ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=groupOfNames)", []string{"cn"}, nil)
	res, err := conn.Search(req)
	return err == nil && len(res.Entries) > 0
}

func (ld *ldapDirectory) Exists(fullName string) (exists bool, err error) {
	var user *User
	if user, err = ld.byNameConnless(fullName); err != nil {
		return false, err
	}
	return user != nil, nil
}

func (ld *ldapDirectory) ByName(fullName string) (user *User, err error) {
	if user, err = ld.byNameConnless(fullName); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("ldap user %q does not exist", fullName)
	}
	return user, nil
}

// byNameConnless returns nil without error when the user is absent.
func (ld *ldapDirectory) byNameConnless(fullName string) (user *User, err error) {
	var conn *ldap.Conn
	if conn, err = ld.dial(); err != nil {
		return
	}
	defer conn.Close()
	var _, localName = SplitFullName(fullName)
	var req = ldap.NewSearchRequest(ld.params.UserBase, ldap.ScopeSingleLevel,
		ldap.NeverDerefAliases, 2, 0, false,
		fmt.Sprintf("(&(objectClass=inetOrgPerson)(uid=%s))", ldap.EscapeFilter(localName)),
		nil, nil)
	var res *ldap.SearchResult
	if res, err = conn.Search(req); err != nil {
		return nil, fmt.Errorf("ldap search for user %q error: %s", localName, err)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return ld.entryToUser(conn, res.Entries[0])
}

// coreAttributes are managed by the directory itself; everything else on an
// entry is surfaced as a custom profile property.
var coreAttributes = map[string]struct{}{
	"uid": {}, "cn": {}, "sn": {}, "objectclass": {}, "userpassword": {},
}

func (ld *ldapDirectory) entryToUser(conn *ldap.Conn, entry *ldap.Entry) (user *User, err error) {
	user = &User{
		Domain:    ld.params.Domain,
		LocalName: entry.GetAttributeValue("uid"),
		Profile:   NewProfile(),
	}
	for _, attr := range entry.Attributes {
		if _, core := coreAttributes[strings.ToLower(attr.Name)]; core {
			continue
		}
		if len(attr.Values) > 0 {
			user.Profile.Custom[attr.Name] = attr.Values[0]
		}
	}

	var req = ldap.NewSearchRequest(ld.params.RoleBase, ldap.ScopeSingleLevel,
		ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=groupOfNames)(member=%s))", ldap.EscapeFilter(entry.DN)),
		[]string{"cn"}, nil)
	var res *ldap.SearchResult
	if res, err = conn.Search(req); err != nil {
		return nil, fmt.Errorf("ldap role search for %q error: %s", user.LocalName, err)
	}
	for _, e := range res.Entries {
		user.AddRole(e.GetAttributeValue("cn"))
	}
	return user, nil
}

func (ld *ldapDirectory) Create(fullName string, password string) (user *User, err error) {
	var conn *ldap.Conn
	if conn, err = ld.dial(); err != nil {
		return
	}
	defer conn.Close()
	var _, localName = SplitFullName(fullName)
	var req = ldap.NewAddRequest(ld.userDn(localName), nil)
	req.Attribute("objectClass", []string{"inetOrgPerson"})
	req.Attribute("uid", []string{localName})
	req.Attribute("cn", []string{localName})
	req.Attribute("sn", []string{localName})
	req.Attribute("userPassword", []string{password})
	if err = conn.Add(req); err != nil {
		return nil, fmt.Errorf("ldap create user %q error: %s", localName, err)
	}
	return &User{
		Domain:    ld.params.Domain,
		LocalName: localName,
		Profile:   NewProfile(),
	}, nil
}

func (ld *ldapDirectory) Save(user *User) (err error) {
	var conn *ldap.Conn
	if conn, err = ld.dial(); err != nil {
		return
	}
	defer conn.Close()

	var dn = ld.userDn(user.LocalName)
	var stored *User
	if stored, err = ld.byNameConnless(user.FullName()); err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("cannot save ldap user %q: it does not exist", user.FullName())
	}

	var mod = ldap.NewModifyRequest(dn, nil)
	var changed bool
	for name, value := range user.Profile.Custom {
		if stored.Profile.Custom[name] != value {
			mod.Replace(name, []string{value})
			changed = true
		}
	}
	for name := range stored.Profile.Custom {
		if _, ok := user.Profile.Custom[name]; !ok {
			mod.Delete(name, nil)
			changed = true
		}
	}
	if changed {
		if err = conn.Modify(mod); err != nil {
			return fmt.Errorf("ldap modify user %q error: %s", user.LocalName, err)
		}
	}

	for _, role := range user.Roles {
		if !stored.IsInRole(role) {
			if err = ld.changeMembership(conn, role, dn, true); err != nil {
				return err
			}
		}
	}
	for _, role := range stored.Roles {
		if !user.IsInRole(role) {
			if err = ld.changeMembership(conn, role, dn, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ld *ldapDirectory) changeMembership(conn *ldap.Conn, role string, memberDn string, add bool) (err error) {
	var mod = ldap.NewModifyRequest(ld.roleDn(role), nil)
	if add {
		mod.Add("member", []string{memberDn})
	} else {
		mod.Delete("member", []string{memberDn})
	}
	if err = conn.Modify(mod); err != nil {
		var verb = "remove from"
		if add {
			verb = "add to"
		}
		return fmt.Errorf("ldap %s role %q member %q error: %s", verb, role, memberDn, err)
	}
	return nil
}

func (ld *ldapDirectory) Delete(user *User) (err error) {
	var conn *ldap.Conn
	if conn, err = ld.dial(); err != nil {
		return
	}
	defer conn.Close()
	var dn = ld.userDn(user.LocalName)
	for _, role := range user.Roles {
		// best effort; a dangling member reference should not block the delete
		_ = ld.changeMembership(conn, role, dn, false)
	}
	if err = conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return fmt.Errorf("ldap delete user %q error: %s", user.LocalName, err)
	}
	return nil
}

func (ld *ldapDirectory) UsersInRoles(roles []string) (users map[string]*User, err error) {
	var conn *ldap.Conn
	if conn, err = ld.dial(); err != nil {
		return
	}
	defer conn.Close()
	users = make(map[string]*User)
	for _, role := range roles {
		var req = ldap.NewSearchRequest(ld.roleDn(role), ldap.ScopeBaseObject,
			ldap.NeverDerefAliases, 1, 0, false,
			"(objectClass=groupOfNames)", []string{"member"}, nil)
		var res *ldap.SearchResult
		if res, err = conn.Search(req); err != nil {
			return nil, fmt.Errorf("ldap members of role %q error: %s", role, err)
		}
		if len(res.Entries) == 0 {
			continue
		}
		for _, memberDn := range res.Entries[0].GetAttributeValues("member") {
			var dn *ldap.DN
			if dn, err = ldap.ParseDN(memberDn); err != nil || len(dn.RDNs) == 0 {
				continue
			}
			var localName string
			for _, attr := range dn.RDNs[0].Attributes {
				if strings.EqualFold(attr.Type, "uid") {
					localName = attr.Value
				}
			}
			if localName == "" {
				continue
			}
			if _, ok := users[localName]; ok {
				continue
			}
			var user *User
			if user, err = ld.byNameConnless(ld.params.Domain + "\\" + localName); err != nil {
				return nil, err
			}
			if user != nil {
				users[localName] = user
			}
		}
	}
	return users, nil
}
