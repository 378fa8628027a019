package main

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlab.no/usersync/directory"
)

func readConfig(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	var v = viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return v
}

func TestBuildKeyedTableMemoryBackend(t *testing.T) {
	var table = buildKeyedTable(readConfig(t, "directory:\n  type: memory\n"))
	assert.IsType(t, &directory.MemoryKeyedTable{}, table)

	table = buildKeyedTable(readConfig(t, "settings: {}\n"))
	assert.IsType(t, &directory.MemoryKeyedTable{}, table)
}

func TestBuildKeyedTableRedis(t *testing.T) {
	var table = buildKeyedTable(readConfig(t, "directory:\n  type: ldap\nredis:\n  addr: localhost:6379\n"))
	assert.IsType(t, &directory.RedisKeyedTable{}, table)
}

func TestBuildKeyedTableRealDirectoryWithoutRedis(t *testing.T) {
	// no in-memory substitute against a real directory: an empty table
	// would make every member look not-present to the sweep
	var table = buildKeyedTable(readConfig(t, "directory:\n  type: ldap\n"))
	assert.Nil(t, table)

	table = buildKeyedTable(readConfig(t, "directory:\n  type: google\n"))
	assert.Nil(t, table)
}
