package directory

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "usersync:key:"

// RedisKeyedTable stores one hash per field ("usersync:key:<field>",
// full name -> value) plus a reverse set per value so UsersFromKey does not
// have to scan. Every call is a single connection round trip; there is no
// caching between calls.
type RedisKeyedTable struct {
	client redis.UniversalClient
	ctx    context.Context
}

func NewRedisKeyedTable(ctx context.Context, client redis.UniversalClient) *RedisKeyedTable {
	return &RedisKeyedTable{client: client, ctx: ctx}
}

func fieldHashKey(field string) string {
	return redisKeyPrefix + field
}

func reverseSetKey(field string, keyValue string) string {
	return redisKeyPrefix + field + ":" + keyValue
}

func (t *RedisKeyedTable) UsersFromKey(field string, keyValue string) ([]string, error) {
	users, err := t.client.SMembers(t.ctx, reverseSetKey(field, keyValue)).Result()
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (t *RedisKeyedTable) KeyFromUser(field string, fullName string) (string, error) {
	value, err := t.client.HGet(t.ctx, fieldHashKey(field), strings.ToLower(fullName)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (t *RedisKeyedTable) UpdateKey(field string, keyValue string, fullName string) (bool, error) {
	name := strings.ToLower(fullName)
	current, err := t.KeyFromUser(field, fullName)
	if err != nil {
		return false, err
	}
	if current == keyValue {
		return false, nil
	}
	if current != "" {
		if err = t.client.SRem(t.ctx, reverseSetKey(field, current), name).Err(); err != nil {
			return false, err
		}
	}
	if err = t.client.HSet(t.ctx, fieldHashKey(field), name, keyValue).Err(); err != nil {
		return false, err
	}
	if err = t.client.SAdd(t.ctx, reverseSetKey(field, keyValue), name).Err(); err != nil {
		return false, err
	}
	return true, nil
}
