package user_sync

import (
	"bytes"
	"errors"
	"fmt"

	ksm "github.com/keeper-security/secrets-manager-go/core"
	"github.com/spf13/viper"

	"netlab.no/usersync/usersync"
)

const (
	importDefinitionFileName = "import-definition.yaml"
	credentialsFileName      = "credentials.json"
)

// RunParameters is everything one hosted run needs from its secrets
// record: the parsed import definition, the Workspace service account
// credentials and the admin subject to impersonate.
type RunParameters struct {
	Definition  *usersync.RunDefinition
	Credentials []byte
	Subject     string
	Domain      string
	Title       string
}

// FindImportRecord picks the record that drives the import: a login
// record carrying both the definition file and the credentials file.
func FindImportRecord(records []*ksm.Record) *ksm.Record {
	for _, r := range records {
		if r.Type() != "login" {
			continue
		}
		if len(r.FindFiles(importDefinitionFileName)) == 0 {
			continue
		}
		if len(r.FindFiles(credentialsFileName)) == 0 {
			continue
		}
		return r
	}
	return nil
}

// LoadRunParametersFromRecord reads the definition file, the credentials
// file and the admin subject off the record. The security domain comes
// from the definition itself.
func LoadRunParametersFromRecord(record *ksm.Record) (params *RunParameters, err error) {
	var files = record.FindFiles(importDefinitionFileName)
	if len(files) == 0 {
		return nil, errors.New("the import record does not carry a \"" + importDefinitionFileName + "\" file")
	}
	var v = viper.New()
	v.SetConfigType("yaml")
	if err = v.ReadConfig(bytes.NewReader(files[0].GetFileData())); err != nil {
		return nil, fmt.Errorf("reading the import definition failed: %s", err)
	}
	definition, err := usersync.LoadRunDefinition(v)
	if err != nil {
		return nil, err
	}

	files = record.FindFiles(credentialsFileName)
	if len(files) == 0 {
		return nil, errors.New("the import record does not carry a \"" + credentialsFileName + "\" file")
	}

	params = &RunParameters{
		Definition:  definition,
		Credentials: files[0].GetFileData(),
		Subject:     record.GetFieldValueByType("login"),
		Domain:      definition.Settings.Value("Create User In What Security Domain"),
		Title:       record.Title(),
	}
	if params.Subject == "" {
		return nil, errors.New("the import record has no login field naming the admin account to impersonate")
	}
	return params, nil
}
