package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
	"github.com/cory-johannsen/d20sheet/internal/storage/redis"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		PassID:      uuid.MustParse("6f1c2a7e-4b8d-4c1e-9a57-2f0b3c4d5e6f"),
		CharacterID: "lidda",
		Values:      map[string]float64{"attributes.ac.normal.total": 22, "abilities.dex.mod": 5},
		SourceDetails: sheet.Details{
			"attributes.ac.normal.total": {{Name: "Dexterity", Value: 5}},
		},
		HPValue: 12,
	}
}

func TestSheetCache_SetAndGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := redis.NewSheetCache(client, time.Hour)
	ctx := context.Background()

	res := sampleResult()
	data, err := json.Marshal(res)
	require.NoError(t, err)

	mock.ExpectSet("sheet:lidda:abc", string(data), time.Hour).SetVal("OK")
	require.NoError(t, cache.Set(ctx, "lidda:abc", res))

	mock.ExpectGet("sheet:lidda:abc").SetVal(string(data))
	got, err := cache.Get(ctx, "lidda:abc")
	require.NoError(t, err)
	assert.Equal(t, res.PassID, got.PassID)
	assert.Equal(t, res.Values, got.Values)
	assert.Equal(t, res.SourceDetails, got.SourceDetails)
	assert.Equal(t, 12.0, got.HPValue)
	assert.Nil(t, got.Sheet)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSheetCache_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := redis.NewSheetCache(client, 0)

	mock.ExpectGet("sheet:nobody:abc").RedisNil()
	_, err := cache.Get(context.Background(), "nobody:abc")
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSheetCache_GetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := redis.NewSheetCache(client, 0)

	mock.ExpectGet("sheet:lidda:abc").SetErr(errors.New("connection refused"))
	_, err := cache.Get(context.Background(), "lidda:abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, redis.ErrCacheMiss)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSheetCache_CorruptEntry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := redis.NewSheetCache(client, 0)

	mock.ExpectGet("sheet:lidda:abc").SetVal("{not json")
	_, err := cache.Get(context.Background(), "lidda:abc")
	assert.ErrorContains(t, err, "decoding cached sheet")
}

func TestSheetCache_SetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := redis.NewSheetCache(client, time.Minute)
	res := sampleResult()
	data, err := json.Marshal(res)
	require.NoError(t, err)

	mock.ExpectSet("sheet:lidda:abc", string(data), time.Minute).SetErr(errors.New("readonly"))
	assert.ErrorContains(t, cache.Set(context.Background(), "lidda:abc", res), "readonly")

	assert.Error(t, cache.Set(context.Background(), "lidda:abc", nil))
}

func TestSheetCache_Invalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := redis.NewSheetCache(client, 0)
	ctx := context.Background()

	mock.ExpectScan(0, "sheet:lidda:*", 100).SetVal([]string{"sheet:lidda:a", "sheet:lidda:b"}, 0)
	mock.ExpectDel("sheet:lidda:a", "sheet:lidda:b").SetVal(2)
	require.NoError(t, cache.Invalidate(ctx, "lidda"))

	mock.ExpectScan(0, "sheet:kara:*", 100).SetVal(nil, 0)
	require.NoError(t, cache.Invalidate(ctx, "kara"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSheetCache_NilClientPanics(t *testing.T) {
	assert.Panics(t, func() { redis.NewSheetCache(nil, 0) })
}
