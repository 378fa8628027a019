package directory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/option"
)

// GoogleParameters configures the Google Workspace directory backend.
// Credentials is a GCP service account JWT credentials file; Subject is the
// Workspace admin account the service account impersonates.
type GoogleParameters struct {
	Credentials []byte
	Subject     string
	// Domain is the Workspace primary domain; a user's address is
	// "<localName>@<Domain>" and full names are "<Domain>\\<localName>".
	Domain string
}

// googleDirectory maps the engine's user model onto Google Workspace: users
// are Workspace accounts, roles are Workspace groups addressed by name, and
// Delete suspends the account instead of removing it.
type googleDirectory struct {
	params  GoogleParameters
	service *admin.Service
}

func NewGoogleDirectory(params GoogleParameters) (dir IUserDirectory, err error) {
	credParams := google.CredentialsParams{
		Scopes: []string{admin.AdminDirectoryUserScope,
			admin.AdminDirectoryGroupScope, admin.AdminDirectoryGroupMemberScope},
		Subject: params.Subject,
	}
	var ctx = context.Background()
	cred, _ := google.CredentialsFromJSONWithParams(ctx, params.Credentials, credParams)
	var service *admin.Service
	if service, err = admin.NewService(ctx, option.WithCredentials(cred)); err != nil {
		return
	}
	return &googleDirectory{params: params, service: service}, nil
}

func (gd *googleDirectory) email(localName string) string {
	return strings.ToLower(localName) + "@" + gd.params.Domain
}

func (gd *googleDirectory) DomainExists(domain string) bool {
	return strings.EqualFold(domain, gd.params.Domain)
}

func (gd *googleDirectory) RoleExists(role string) bool {
	var group, err = gd.groupByName(role)
	return err == nil && group != nil
}

// groupByName returns nil without error when no Workspace group carries the
// name or address.
func (gd *googleDirectory) groupByName(role string) (group *admin.Group, err error) {
	var groups *admin.Groups
	if groups, err = gd.service.Groups.List().Customer("my_customer").Do(); err != nil {
		return nil, fmt.Errorf("google directory group list error: %s", err)
	}
	var wanted = strings.ToLower(role)
	for _, g := range groups.Groups {
		if strings.ToLower(g.Name) == wanted || strings.ToLower(g.Email) == wanted {
			return g, nil
		}
	}
	return nil, nil
}

func (gd *googleDirectory) Exists(fullName string) (exists bool, err error) {
	var user *admin.User
	if user, err = gd.rawUser(fullName); err != nil {
		return false, err
	}
	return user != nil, nil
}

func (gd *googleDirectory) rawUser(fullName string) (user *admin.User, err error) {
	var _, localName = SplitFullName(fullName)
	user, err = gd.service.Users.Get(gd.email(localName)).Do()
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil, nil
		}
		return nil, fmt.Errorf("google directory user %q error: %s", localName, err)
	}
	return user, nil
}

func (gd *googleDirectory) ByName(fullName string) (user *User, err error) {
	var raw *admin.User
	if raw, err = gd.rawUser(fullName); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("google directory user %q does not exist", fullName)
	}
	return gd.toUser(raw)
}

func (gd *googleDirectory) toUser(raw *admin.User) (user *User, err error) {
	var localName = raw.PrimaryEmail
	if i := strings.Index(localName, "@"); i >= 0 {
		localName = localName[:i]
	}
	user = &User{
		Domain:    gd.params.Domain,
		LocalName: localName,
		Profile:   NewProfile(),
	}
	if raw.Name != nil {
		user.Profile.Custom["FirstName"] = raw.Name.GivenName
		user.Profile.Custom["LastName"] = raw.Name.FamilyName
		if len(raw.Name.FullName) > 0 {
			user.Profile.Custom["FullName"] = raw.Name.FullName
		}
	}
	var groups *admin.Groups
	if groups, err = gd.service.Groups.List().UserKey(raw.PrimaryEmail).Do(); err != nil {
		return nil, fmt.Errorf("google directory groups of %q error: %s", localName, err)
	}
	for _, g := range groups.Groups {
		user.AddRole(g.Name)
	}
	return user, nil
}

func (gd *googleDirectory) Create(fullName string, password string) (user *User, err error) {
	var _, localName = SplitFullName(fullName)
	var raw = &admin.User{
		PrimaryEmail: gd.email(localName),
		Password:     password,
		Name: &admin.UserName{
			GivenName:  localName,
			FamilyName: localName,
		},
	}
	if _, err = gd.service.Users.Insert(raw).Do(); err != nil {
		return nil, fmt.Errorf("google directory create %q error: %s", localName, err)
	}
	return &User{
		Domain:    gd.params.Domain,
		LocalName: localName,
		Profile:   NewProfile(),
	}, nil
}

func (gd *googleDirectory) Save(user *User) (err error) {
	var raw *admin.User
	if raw, err = gd.rawUser(user.FullName()); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("cannot save google directory user %q: it does not exist", user.FullName())
	}
	var stored *User
	if stored, err = gd.toUser(raw); err != nil {
		return err
	}

	var update = &admin.User{}
	var changed bool
	var first = user.Profile.Custom["FirstName"]
	var last = user.Profile.Custom["LastName"]
	if first != stored.Profile.Custom["FirstName"] || last != stored.Profile.Custom["LastName"] {
		update.Name = &admin.UserName{GivenName: first, FamilyName: last}
		changed = true
	}
	if changed {
		if _, err = gd.service.Users.Update(raw.PrimaryEmail, update).Do(); err != nil {
			return fmt.Errorf("google directory update %q error: %s", user.LocalName, err)
		}
	}

	for _, role := range user.Roles {
		if !stored.IsInRole(role) {
			if err = gd.changeMembership(role, raw.PrimaryEmail, true); err != nil {
				return err
			}
		}
	}
	for _, role := range stored.Roles {
		if !user.IsInRole(role) {
			if err = gd.changeMembership(role, raw.PrimaryEmail, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (gd *googleDirectory) changeMembership(role string, email string, add bool) (err error) {
	var group *admin.Group
	if group, err = gd.groupByName(role); err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("google directory group %q does not exist", role)
	}
	if add {
		_, err = gd.service.Members.Insert(group.Id, &admin.Member{Email: email}).Do()
	} else {
		err = gd.service.Members.Delete(group.Id, email).Do()
	}
	if err != nil {
		var verb = "remove from"
		if add {
			verb = "add to"
		}
		return fmt.Errorf("google directory %s group %q member %q error: %s", verb, role, email, err)
	}
	return nil
}

// Delete suspends the Workspace account. Accounts are never removed through
// this backend; a suspended account keeps its data and can be restored.
func (gd *googleDirectory) Delete(user *User) (err error) {
	var email = gd.email(user.LocalName)
	var update = &admin.User{Suspended: true, ForceSendFields: []string{"Suspended"}}
	if _, err = gd.service.Users.Update(email, update).Do(); err != nil {
		return fmt.Errorf("google directory suspend %q error: %s", user.LocalName, err)
	}
	return nil
}

func (gd *googleDirectory) UsersInRoles(roles []string) (users map[string]*User, err error) {
	users = make(map[string]*User)
	// walk each role's membership breadth-first so nested groups contribute
	// their members too
	var membershipCache = make(map[string][]*admin.Member)
	for _, role := range roles {
		var group *admin.Group
		if group, err = gd.groupByName(role); err != nil {
			return nil, err
		}
		if group == nil {
			continue
		}
		var groupIds = []string{group.Id}
		var queuedIds = map[string]struct{}{group.Id: {}}
		var pos = 0
		for pos < len(groupIds) {
			var gId = groupIds[pos]
			pos++

			var members []*admin.Member
			var ok bool
			if members, ok = membershipCache[gId]; !ok {
				var res *admin.Members
				if res, err = gd.service.Members.List(gId).Do(); err != nil {
					return nil, fmt.Errorf("google directory members of group %q error: %s", gId, err)
				}
				members = res.Members
				membershipCache[gId] = members
			}
			for _, m := range members {
				if m.Type == "GROUP" {
					if _, ok = queuedIds[m.Id]; !ok {
						groupIds = append(groupIds, m.Id)
						queuedIds[m.Id] = struct{}{}
					}
					continue
				}
				var localName = m.Email
				if i := strings.Index(localName, "@"); i >= 0 {
					localName = localName[:i]
				}
				if _, ok = users[localName]; ok {
					continue
				}
				var user *User
				if user, err = gd.ByName(gd.params.Domain + "\\" + localName); err != nil {
					return nil, err
				}
				users[localName] = user
			}
		}
	}
	return users, nil
}
