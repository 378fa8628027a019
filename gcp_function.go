package user_sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/go-kit/log"
	ksm "github.com/keeper-security/secrets-manager-go/core"

	"netlab.no/usersync/directory"
	_ "netlab.no/usersync/sources"
	"netlab.no/usersync/usersync"
)

func init() {
	// Register an HTTP function with the Functions Framework
	functions.HTTP("UserSyncHttp", userSyncHttp)
	functions.CloudEvent("UserSyncPubSub", userSyncPubSub)
}

const ksmConfigName = "KSM_CONFIG_BASE64"
const ksmRecordUid = "KSM_RECORD_UID"

// runImport resolves the import record from Keeper Secrets Manager, builds
// the run against the Google Workspace directory and executes it. The
// returned report carries the outcome even when the run itself failed;
// only setup problems surface as an error.
func runImport() (report *usersync.RunReport, err error) {
	var configBase64 = os.Getenv(ksmConfigName)
	if len(configBase64) == 0 {
		err = fmt.Errorf("environment variable %q is not set", ksmConfigName)
		return
	}

	var config = ksm.NewMemoryKeyValueStorage(configBase64)
	var sm = ksm.NewSecretsManager(&ksm.ClientOptions{
		Config: config,
	})

	var filter []string
	var recordUid = os.Getenv(ksmRecordUid)
	if len(recordUid) > 0 {
		filter = append(filter, recordUid)
	}

	var records []*ksm.Record
	if records, err = sm.GetSecrets(filter); err != nil {
		return
	}

	var record = FindImportRecord(records)
	if record == nil {
		err = errors.New("the import record was not found. Make sure the record is valid and shared to the KSM application")
		return
	}

	var params *RunParameters
	if params, err = LoadRunParametersFromRecord(record); err != nil {
		return
	}

	var dir directory.IUserDirectory
	if dir, err = directory.NewGoogleDirectory(directory.GoogleParameters{
		Credentials: params.Credentials,
		Subject:     params.Subject,
		Domain:      params.Domain,
	}); err != nil {
		return
	}

	var logger = log.With(log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout)), "ts", log.DefaultTimestampUTC)
	run, report := usersync.BuildRun(params.Definition, usersync.RunCollaborators{
		Directory: dir,
		Logger:    logger,
	}, params.Title)
	run.Run()

	if run.Config().MailRecipients != "" {
		usersync.SendRunReport(smtpSenderFromEnv(), run.Config(), report, params.Title)
	}
	return report, nil
}

func smtpSenderFromEnv() usersync.IMailSender {
	var port = 587
	fmt.Sscanf(os.Getenv("SMTP_PORT"), "%d", &port)
	return &usersync.SmtpSender{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}
}

// userSyncHttp runs the import and answers with the status block.
func userSyncHttp(w http.ResponseWriter, _ *http.Request) {
	var report, err = runImport()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = fmt.Fprint(w, report.StatusText())
	if report.HasErrors() {
		_, _ = fmt.Fprint(w, "\r\n"+report.ErrorText())
	}
}

// userSyncPubSub consumes a CloudEvent message and runs the import.
func userSyncPubSub(_ context.Context, _ event.Event) (err error) {
	_, err = runImport()
	return
}
