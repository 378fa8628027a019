package directory

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKeyedTableUpdateKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var table = NewRedisKeyedTable(context.Background(), db)

	mock.ExpectHGet("usersync:key:EmployeeId", "extranet\\jdoe").RedisNil()
	mock.ExpectHSet("usersync:key:EmployeeId", "extranet\\jdoe", "1001").SetVal(1)
	mock.ExpectSAdd("usersync:key:EmployeeId:1001", "extranet\\jdoe").SetVal(1)

	changed, err := table.UpdateKey("EmployeeId", "1001", "Extranet\\JDoe")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyedTableUpdateKeyMovesReverseEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var table = NewRedisKeyedTable(context.Background(), db)

	mock.ExpectHGet("usersync:key:EmployeeId", "extranet\\jdoe").SetVal("1001")
	mock.ExpectSRem("usersync:key:EmployeeId:1001", "extranet\\jdoe").SetVal(1)
	mock.ExpectHSet("usersync:key:EmployeeId", "extranet\\jdoe", "2002").SetVal(1)
	mock.ExpectSAdd("usersync:key:EmployeeId:2002", "extranet\\jdoe").SetVal(1)

	changed, err := table.UpdateKey("EmployeeId", "2002", "extranet\\jdoe")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyedTableUpdateKeyUnchanged(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var table = NewRedisKeyedTable(context.Background(), db)

	mock.ExpectHGet("usersync:key:EmployeeId", "extranet\\jdoe").SetVal("1001")

	changed, err := table.UpdateKey("EmployeeId", "1001", "extranet\\jdoe")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyedTableLookups(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var table = NewRedisKeyedTable(context.Background(), db)

	mock.ExpectSMembers("usersync:key:EmployeeId:1001").SetVal([]string{"extranet\\jdoe"})
	users, err := table.UsersFromKey("EmployeeId", "1001")
	require.NoError(t, err)
	assert.Equal(t, []string{"extranet\\jdoe"}, users)

	mock.ExpectHGet("usersync:key:EmployeeId", "extranet\\jdoe").RedisNil()
	value, err := table.KeyFromUser("EmployeeId", "extranet\\jdoe")
	require.NoError(t, err)
	assert.Equal(t, "", value)
	require.NoError(t, mock.ExpectationsWereMet())
}
