package usersync

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"netlab.no/usersync/directory"
)

const defaultRowsBetweenProgressMessages = 10

// DataMap drives one import run: it pulls the row batch from the source
// and reconciles every row against the user directory, accumulating the
// outcome in the report. A row's failure never stops the batch; only the
// gates before the row loop do.
type DataMap struct {
	cfg      *ImportConfig
	dir      directory.IUserDirectory
	source   IRowSource
	mappings []IFieldMapping
	keys     IKeyStrategy
	report   *RunReport
	logger   log.Logger

	identifier string

	// ProcessCustomData is invoked for every row after field processing.
	// Optional; an error marks the row failed.
	ProcessCustomData func(user *directory.User, row Row) (processed bool, err error)
}

func NewDataMap(cfg *ImportConfig, dir directory.IUserDirectory, source IRowSource,
	mappings []IFieldMapping, keys IKeyStrategy, report *RunReport,
	logger log.Logger, identifier string) *DataMap {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &DataMap{
		cfg:        cfg,
		dir:        dir,
		source:     source,
		mappings:   mappings,
		keys:       keys,
		report:     report,
		logger:     logger,
		identifier: identifier,
	}
}

// Config exposes the resolved run settings, for the mail step after the
// run.
func (dm *DataMap) Config() *ImportConfig {
	return dm.cfg
}

// ResolveKeyStrategy picks the run's key strategy: the username field
// directly, or a keyed lookup through the mapping named by the
// "Identify User Unique From What Field" setting.
func ResolveKeyStrategy(cfg *ImportConfig, dir directory.IUserDirectory,
	table directory.KeyedTable, mappings []IFieldMapping, report *RunReport) IKeyStrategy {
	if cfg.IdentifyUserUniqueFromWhatField == "" {
		return NewUsernameKeyStrategy(dir, cfg.CreateUserInWhatSecurityDomain, cfg.GetUsernameFromWhatField)
	}
	for _, m := range mappings {
		if m.TargetField() != cfg.IdentifyUserUniqueFromWhatField {
			continue
		}
		if table == nil {
			report.AddError("Error", fmt.Sprintf(
				"The initialization of the key strategy failed: the key field %q requires a keyed table, but none is configured for this run.",
				cfg.IdentifyUserUniqueFromWhatField))
			return nil
		}
		return NewKeyedLookupStrategy(dir, table, m)
	}
	report.AddError("Error", fmt.Sprintf(
		"The initialization of the key strategy failed: no field mapping targets the field %q named in %q.",
		cfg.IdentifyUserUniqueFromWhatField, "Identify User Unique From What Field"))
	return nil
}

// Run executes the reconciliation. The returned report is the same object
// the DataMap was constructed with; no step ever rolls a previous step
// back.
func (dm *DataMap) Run() *RunReport {
	var r = dm.report

	// a run object already carrying errors never executes
	if r.HasErrors() {
		r.AddError("Error", "The import did not run.")
		return r
	}

	rows, err := dm.source.Rows()
	if err != nil {
		r.AddError("Connection Error", fmt.Sprintf(
			"Fetching the import data failed. The import was not performed. Error: %s", err))
		return r
	}
	if rows == nil {
		r.AddError("Error", "The data source returned a nil row set. Therefore the import was not performed.")
		return r
	}

	rows, ok := dm.windowRows(rows)
	if !ok {
		return r
	}

	r.TotalNumberOfUsers = len(rows)
	if len(rows) < dm.cfg.MinimumNumberOfRowsRequiredToRunTheImport {
		r.AddError("Error", fmt.Sprintf(
			"The number of rows in the import was lower than the minimum number of rows required, so the import was not started. This value is set by %q. Minimum: %d. NumberOfRows: %d.",
			"Minimum Number Of Rows Required To Run The Import",
			dm.cfg.MinimumNumberOfRowsRequiredToRunTheImport, len(rows)))
		return r
	}

	if dm.cfg.ValidateImportDataBeforeProcessing {
		if message := dm.validateRows(rows); message != "" {
			r.AddError("Error", fmt.Sprintf(
				"Validation of the import data resulted in errors. See the following detailed messages:\r\n\r\n%s", message))
			return r
		}
	}

	var interval = len(rows) / 10
	if interval < 1 {
		interval = defaultRowsBetweenProgressMessages
	}
	for _, row := range rows {
		if !dm.cfg.DoNotLogProgressStatusMessages && r.ProcessedUsers%interval == 0 {
			level.Info(dm.logger).Log(
				"job", dm.identifier,
				"msg", "import progress",
				"processed", r.ProcessedUsers,
				"total", r.TotalNumberOfUsers)
		}
		r.ProcessedUsers++
		if !dm.processRow(row) {
			continue
		}
		r.SucceededUsers++
	}

	if dm.cfg.ProcessUsersNotPresentInImport {
		dm.processNotPresent(rows)
	}

	level.Info(dm.logger).Log("job", dm.identifier, "msg", "import finished",
		"status", strings.ReplaceAll(r.StatusText(), "\r\n", " "))
	return r
}

// windowRows applies the start index and limit. A zero limit means no
// upper bound; a start index beyond the row count leaves the batch
// untouched. A configured limit whose end index falls outside the batch
// aborts the run with a range error.
func (dm *DataMap) windowRows(rows []Row) (windowed []Row, ok bool) {
	var start = dm.cfg.StartOnWhatImportRowIndex
	var limit = dm.cfg.LimitNumberOfImportRowsToWhatNumber
	if start >= len(rows) || limit == 0 {
		return rows, true
	}
	var end = start + limit
	if end >= len(rows) || end <= start {
		dm.report.AddError("Error", fmt.Sprintf(
			"The range to limit the import rows on was out of range and the import was aborted. StartIndex: %d. Limit: %d. NumberOfRows: %d.",
			start, limit, len(rows)))
		return nil, false
	}
	return rows[start:end], true
}

// validateRows checks that every row resolves a non-empty, unique key.
// All problems are collected into one message; any problem aborts the
// whole run before a single row is processed.
func (dm *DataMap) validateRows(rows []Row) string {
	var sb strings.Builder
	var keyErrors int
	var seen = NewSet[string]()
	for _, row := range rows {
		key, err := dm.keys.KeyFromRow(row)
		if err != nil {
			fmt.Fprintf(&sb, "--- An error occurred trying to validate that the key was unique in the import data. Error: %s. ImportRow: %s.\r\n",
				err, row.DebugString())
			keyErrors++
			continue
		}
		if key == "" {
			fmt.Fprintf(&sb, "--- The key value was empty in the import data. ImportRow: %s.\r\n", row.DebugString())
			keyErrors++
			continue
		}
		if seen.Has(key) {
			if !dm.cfg.InValidationAllowDuplicatesInKey {
				fmt.Fprintf(&sb, "--- There were duplicate key values in the import data. ImportRow: %s.\r\n", row.DebugString())
				keyErrors++
			}
			continue
		}
		seen.Add(key)
	}
	if keyErrors > 0 {
		return fmt.Sprintf("Validation found %d key errors.\r\n", keyErrors) + sb.String()
	}
	return ""
}

// processRow reconciles one row. Errors are isolated to the row: they are
// counted and logged, and the batch moves on.
func (dm *DataMap) processRow(row Row) bool {
	var r = dm.report

	key, err := dm.keys.KeyFromRow(row)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"The key value did not resolve on the import row. The key identifies the user uniquely, so the row was not imported. ImportRow: %s. Error: %s",
			row.DebugString(), err))
		r.FailureUsers++
		return false
	}

	users, err := dm.keys.UsersByKey(key)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"An error occurred trying to determine whether the user with the key %q exists. The processing of that row was aborted. ImportRow: %s. Error: %s",
			key, row.DebugString(), err))
		r.FailureUsers++
		return false
	}
	if len(users) > 1 {
		r.AddError("Error", fmt.Sprintf(
			"There was more than one user with the same key. The key must be unique, so the row was not imported. Key: %q. Users: %s. ImportRow: %s.",
			key, userListDebug(users), row.DebugString()))
		r.FailureUsers++
		return false
	}

	var user *directory.User
	if len(users) == 1 {
		user = users[0]
	}
	if user == nil {
		if user = dm.createUser(row, key); user == nil {
			return false
		}
	}
	// a freshly created user goes through the update path in the same pass
	return dm.updateUser(user, row)
}

func userListDebug(users []*directory.User) (result string) {
	for i, user := range users {
		if i > 0 {
			result += ", "
		}
		result += user.DebugString()
	}
	return
}

// createUser derives the account name from the username field and creates
// the user with standard roles. A name collision with a different key is a
// conflict, never an overwrite.
func (dm *DataMap) createUser(row Row, key string) *directory.User {
	var r = dm.report

	username, err := row.Field(dm.cfg.GetUsernameFromWhatField)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"An error occurred during resolution of the username, so the user could not be created. ImportRow: %s. Error: %s",
			row.DebugString(), err))
		r.FailureUsers++
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		r.AddError("Error", fmt.Sprintf(
			"The username was empty for the import row, so the user could not be created. ImportRow: %s. UsernameField: %q.",
			row.DebugString(), dm.cfg.GetUsernameFromWhatField))
		r.FailureUsers++
		return nil
	}

	var fullName = dm.cfg.CreateUserInWhatSecurityDomain + "\\" + username
	exists, err := dm.dir.Exists(fullName)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"Checking whether the user %q already exists failed. The row was not imported. ImportRow: %s. Error: %s",
			fullName, row.DebugString(), err))
		r.FailureUsers++
		return nil
	}
	if exists {
		var existingKey string
		if existing, er1 := dm.dir.ByName(fullName); er1 == nil {
			existingKey, _ = dm.keys.KeyFromUser(existing)
		}
		r.AddError("Error", fmt.Sprintf(
			"A user with the username %q already exists, but with a different key, so the user could not be created. This can happen when the key for the user is not the username. The key on the existing user: %q. ImportRow: %s. Key: %q.",
			fullName, existingKey, row.DebugString(), key))
		r.FailureUsers++
		return nil
	}

	password, err := dm.passwordForRow(row)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"Resolving the password failed, so the user was not created. The import of that row was aborted. ImportRow: %s. Error: %s",
			row.DebugString(), err))
		r.FailureUsers++
		return nil
	}

	user, err := dm.dir.Create(fullName, password)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"Creating the user %q failed. ImportRow: %s. Error: %s", fullName, row.DebugString(), err))
		r.FailureUsers++
		return nil
	}

	var changed bool
	for _, role := range dm.cfg.AddUserToWhatStandardRoles {
		if user.AddRole(role) {
			changed = true
		}
	}
	if changed {
		if err = dm.dir.Save(user); err != nil {
			r.AddError("Error", fmt.Sprintf(
				"Assigning the standard roles to the new user %s failed. Error: %s", user.DebugString(), err))
			r.FailureUsers++
			return nil
		}
	}

	r.CreatedUsers++
	return user
}

func (dm *DataMap) passwordForRow(row Row) (password string, err error) {
	if dm.cfg.GetPasswordFromWhatField != "" {
		if password, err = row.Field(dm.cfg.GetPasswordFromWhatField); err != nil {
			return "", fmt.Errorf("retrieving the password from the import row failed: %s", err)
		}
		password = strings.TrimSpace(password)
	}
	// an empty password field falls through to generation
	if password == "" {
		password, err = GeneratePassword(dm.cfg.AutogeneratePasswordWithLength)
	}
	return password, err
}

// updateUser applies the profile template, the present-in-import role
// policy and every field mapping. A mapping failure marks the row failed
// but the remaining mappings still run; the user is persisted once per row
// when anything changed.
func (dm *DataMap) updateUser(user *directory.User, row Row) bool {
	var r = dm.report
	var updatedFields = false
	var failed = false

	if dm.cfg.SetProfileItemOnUser {
		var profileItemID = dm.cfg.UseWhatProfileItemID
		if profileItemID == "" {
			profileItemID = defaultProfileItemID
		}
		if user.Profile.ProfileItemID != profileItemID {
			user.Profile.ProfileItemID = profileItemID
			updatedFields = true
		}
	}

	var updatedRoles = false
	for _, role := range dm.cfg.OnPresentInImportAddToRoles {
		if user.AddRole(role) {
			updatedRoles = true
		}
	}
	for _, role := range dm.cfg.OnPresentInImportRemoveFromRoles {
		if user.RemoveRole(role) {
			updatedRoles = true
		}
	}
	if updatedRoles {
		r.UpdatedRolesUsers++
	}

	for _, mapping := range dm.mappings {
		raw, err := RawValue(mapping, row)
		if err != nil {
			r.AddError("Error", fmt.Sprintf(
				"An error occurred extracting the source values for the field %q on the user %s. The processing of the user was aborted. Error: %s",
				mapping.TargetField(), user.DebugString(), err))
			r.FailureUsers++
			return false
		}
		updated, err := mapping.FillField(user, raw)
		if err != nil {
			r.AddError("FieldError", fmt.Sprintf(
				"An error occurred processing a field on the user %s. The processing of the user itself is not aborted and the rest of the fields have been processed. Error: %s",
				user.DebugString(), err))
			failed = true
		}
		if updated {
			updatedFields = true
		}
	}

	if updatedFields || updatedRoles {
		if err := dm.dir.Save(user); err != nil {
			r.AddError("Error", fmt.Sprintf(
				"Persisting the user %s failed. ImportRow: %s. Error: %s", user.DebugString(), row.DebugString(), err))
			r.FailureUsers++
			return false
		}
	}
	if updatedFields {
		r.UpdatedFields++
	}
	if failed {
		r.FailureUsers++
		return false
	}

	if dm.ProcessCustomData != nil {
		processed, err := dm.ProcessCustomData(user, row)
		if err != nil {
			r.AddError("Error", fmt.Sprintf(
				"Processing the custom data for the user %s failed. ImportRow: %s. Error: %s",
				user.DebugString(), row.DebugString(), err))
			r.FailureUsers++
			return false
		}
		if processed {
			r.ProcessedCustomDataUsers++
		}
	}
	return true
}

// processNotPresent sweeps the directory members that hold any of the
// present-in-import roles but whose key is absent from the import. Members
// whose key cannot be computed are swept as well. Each member is handled
// independently.
func (dm *DataMap) processNotPresent(rows []Row) {
	var r = dm.report

	members, err := dm.dir.UsersInRoles(dm.cfg.OnPresentInImportAddToRoles)
	if err != nil {
		r.AddError("Error", fmt.Sprintf(
			"Resolving the current role members failed, so the not-present processing was terminated. Error: %s", err))
		return
	}

	var keyList = NewSet[string]()
	var keyErrors string
	for _, row := range rows {
		key, er1 := dm.keys.KeyFromRow(row)
		if er1 != nil {
			keyErrors += er1.Error() + ". "
			continue
		}
		if key != "" {
			keyList.Add(key)
		}
	}
	if keyErrors != "" {
		r.AddError("Error", fmt.Sprintf(
			"Building the key list of the import failed, so the not-present processing was terminated. %s", keyErrors))
		return
	}

	r.TotalNumberOfNotPresentInImportUsers = len(members) - len(keyList)

	for _, user := range members {
		key, er1 := dm.keys.KeyFromUser(user)
		if er1 != nil {
			r.AddError("Error", fmt.Sprintf(
				"Reading the key of the member %s failed. The processing of that member was terminated; the rest continued. Error: %s",
				user.DebugString(), er1))
			r.FailedNotPresentInImportProcessedUsers++
			continue
		}
		// a member with an empty key is swept too
		if key != "" && keyList.Has(key) {
			continue
		}
		if er1 = dm.processMemberNotPresent(user); er1 != nil {
			r.AddError("Error", fmt.Sprintf(
				"Processing the not-present member %s failed. The processing of that member was terminated; the rest continued. Error: %s",
				user.DebugString(), er1))
			r.FailedNotPresentInImportProcessedUsers++
			continue
		}
		r.NotPresentInImportProcessedUsers++
	}
}

// processMemberNotPresent applies the not-present role policy and, when
// configured, deletes the member if its roles are a subset of the standard
// roles. Elevated members survive the sweep.
func (dm *DataMap) processMemberNotPresent(user *directory.User) error {
	var changed = false
	for _, role := range dm.cfg.OnNotPresentInImportAddToRoles {
		if user.AddRole(role) {
			changed = true
		}
	}
	for _, role := range dm.cfg.OnNotPresentInImportRemoveFromRoles {
		if user.RemoveRole(role) {
			changed = true
		}
	}

	if dm.cfg.DeleteUsersWithMembershipInStandardRolesOnly {
		var standard = MakeSet[string](dm.cfg.AddUserToWhatStandardRoles)
		var onlyStandardRoles = true
		for _, role := range user.Roles {
			if !standard.Has(role) {
				onlyStandardRoles = false
				break
			}
		}
		if onlyStandardRoles {
			if err := dm.dir.Delete(user); err != nil {
				dm.report.FailedDeletedUsers++
				return fmt.Errorf("deleting the user %s failed: %s", user.DebugString(), err)
			}
			dm.report.DeletedUsers++
			return nil
		}
	}

	if changed {
		if err := dm.dir.Save(user); err != nil {
			return fmt.Errorf("persisting the role changes on %s failed: %s", user.DebugString(), err)
		}
	}
	return nil
}
