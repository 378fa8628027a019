package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"netlab.no/usersync/directory"
	_ "netlab.no/usersync/sources"
	"netlab.no/usersync/usersync"
)

// The CLI runs one import from a definition file. Besides the run settings
// and the field definitions the file carries a "directory" section picking
// the backend (memory, ldap or google), an optional "redis" section for
// the keyed table and an optional "mail" section for the relay.
func main() {
	var definitionPath = flag.String("definition", "import-definition.yaml", "path to the import definition file")
	var identifier = flag.String("identifier", "", "run identifier used in log lines and the status mail subject")
	var sendMail = flag.Bool("send-mail", false, "mail the run report to the configured recipients")
	flag.Parse()

	var logger = log.With(log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)), "ts", log.DefaultTimestampUTC)

	var v = viper.New()
	v.SetConfigFile(*definitionPath)
	if err := v.ReadInConfig(); err != nil {
		fatal(logger, "reading the import definition failed", err)
	}

	def, err := usersync.LoadRunDefinition(v)
	if err != nil {
		fatal(logger, "loading the import definition failed", err)
	}

	dir, err := buildDirectory(v)
	if err != nil {
		fatal(logger, "building the user directory failed", err)
	}

	var table = buildKeyedTable(v)

	var runIdentifier = *identifier
	if runIdentifier == "" {
		runIdentifier = strings.TrimSuffix(filepath.Base(*definitionPath), filepath.Ext(*definitionPath))
	}

	run, report := usersync.BuildRun(def, usersync.RunCollaborators{
		Directory:  dir,
		KeyedTable: table,
		Logger:     logger,
	}, runIdentifier)
	run.Run()

	if *sendMail {
		var sender = &usersync.SmtpSender{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
		}
		usersync.SendRunReport(sender, run.Config(), report, runIdentifier)
	}

	fmt.Print(report.StatusText())
	if report.HasErrors() {
		fmt.Print("\r\n" + report.ErrorText())
		os.Exit(1)
	}
}

// buildKeyedTable resolves the keyed table backend. Against a real
// directory a missing "redis" section leaves the table nil so a keyed
// identity fails as a configuration error; an empty substitute table would
// make every member look not-present to the sweep.
func buildKeyedTable(v *viper.Viper) directory.KeyedTable {
	if v.IsSet("redis") {
		var client = redis.NewClient(&redis.Options{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		})
		return directory.NewRedisKeyedTable(context.Background(), client)
	}
	switch v.GetString("directory.type") {
	case "", "memory":
		return directory.NewMemoryKeyedTable()
	}
	return nil
}

func buildDirectory(v *viper.Viper) (directory.IUserDirectory, error) {
	switch backend := v.GetString("directory.type"); backend {
	case "", "memory":
		return directory.NewMemoryDirectory(
			v.GetStringSlice("directory.domains"),
			v.GetStringSlice("directory.roles")), nil
	case "ldap":
		return directory.NewLdapDirectory(directory.LdapParameters{
			Url:      v.GetString("directory.url"),
			BindDn:   v.GetString("directory.bind_dn"),
			BindPass: v.GetString("directory.bind_password"),
			UserBase: v.GetString("directory.user_base"),
			RoleBase: v.GetString("directory.role_base"),
			Domain:   v.GetString("directory.domain"),
		}), nil
	case "google":
		credentials, err := os.ReadFile(v.GetString("directory.credentials_file"))
		if err != nil {
			return nil, fmt.Errorf("reading the credentials file failed: %s", err)
		}
		return directory.NewGoogleDirectory(directory.GoogleParameters{
			Credentials: credentials,
			Subject:     v.GetString("directory.subject"),
			Domain:      v.GetString("directory.domain"),
		})
	default:
		return nil, fmt.Errorf("unknown directory type %q, known types: [google ldap memory]", backend)
	}
}

func fatal(logger log.Logger, msg string, err error) {
	level.Error(logger).Log("msg", msg, "err", err)
	os.Exit(1)
}
