package usersync

import (
	"fmt"
	"strings"
	"time"
)

// RunReport accumulates the counters and the error log of one import run.
// It is created at run start, mutated throughout and never reset; every
// error is appended, nothing is ever overwritten.
type RunReport struct {
	ProcessedUsers                         int
	CreatedUsers                           int
	SucceededUsers                         int
	FailureUsers                           int
	DeletedUsers                           int
	FailedDeletedUsers                     int
	UpdatedFields                          int
	UpdatedRolesUsers                      int
	NotPresentInImportProcessedUsers       int
	FailedNotPresentInImportProcessedUsers int
	ProcessedCustomDataUsers               int
	TotalNumberOfUsers                     int
	TotalNumberOfNotPresentInImportUsers   int

	entries []ReportEntry
}

type ReportEntry struct {
	At       time.Time
	Category string
	Message  string
}

func NewRunReport() *RunReport {
	return &RunReport{}
}

// AddError appends a timestamped entry to the error log.
func (r *RunReport) AddError(category string, message string) {
	r.entries = append(r.entries, ReportEntry{
		At:       time.Now(),
		Category: category,
		Message:  message,
	})
}

// HasErrors reports whether any error has been logged. A run object that
// already carries errors never starts processing.
func (r *RunReport) HasErrors() bool {
	return len(r.entries) > 0
}

func (r *RunReport) Entries() []ReportEntry {
	return r.entries
}

// ErrorText renders the error log, one "Category : Message" block per entry.
func (r *RunReport) ErrorText() string {
	var sb strings.Builder
	for _, entry := range r.entries {
		sb.WriteString(entry.Category)
		sb.WriteString(" : ")
		sb.WriteString(entry.Message)
		sb.WriteString("\r\n\r\n")
	}
	return sb.String()
}

// StatusText renders the counters as "Label: Count" lines, omitting
// counters that are zero.
func (r *RunReport) StatusText() string {
	var sb strings.Builder
	var write = func(label string, count int) {
		if count != 0 {
			fmt.Fprintf(&sb, "%s: %d\r\n", label, count)
		}
	}
	write("ProcessedUsers", r.ProcessedUsers)
	write("CreatedUsers", r.CreatedUsers)
	write("NotPresentInImportProcessedUsers", r.NotPresentInImportProcessedUsers)
	write("FailedNotPresentInImportProcessedUsers", r.FailedNotPresentInImportProcessedUsers)
	write("DeletedUsers", r.DeletedUsers)
	write("UpdatedRolesUsers", r.UpdatedRolesUsers)
	write("FailedDeletedUsers", r.FailedDeletedUsers)
	write("FailureUsers", r.FailureUsers)
	write("UpdatedFields", r.UpdatedFields)
	write("SucceededUsers", r.SucceededUsers)
	write("ProcessedCustomDataUsers", r.ProcessedCustomDataUsers)
	return sb.String()
}
