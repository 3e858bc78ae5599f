package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keydcore/keyd/internal/value"
)

func newTestDB() *Database {
	return NewDatabase(0, 0xC0FFEE, zap.NewNop())
}

func TestGetSetRoundTrip(t *testing.T) {
	db := newTestDB()
	db.Set("k", value.NewString("v"), false)

	v, ok := db.Get("k", IntentRead, 1000)
	require.True(t, ok)
	assert.Equal(t, "v", v.Str)
}

func TestLazyExpirationOnWriteIntentDeletes(t *testing.T) {
	db := newTestDB()
	db.Set("k", value.NewString("v"), false)
	db.SetExpiration("k", 500)

	_, ok := db.Get("k", IntentWrite, 1000)
	assert.False(t, ok)
	assert.Equal(t, 0, db.Size())
}

func TestReplicaDoesNotDeleteOnLazyRead(t *testing.T) {
	db := newTestDB()
	db.SetRole(RoleReplica)
	db.Set("k", value.NewString("v"), false)
	db.SetExpiration("k", 500)

	_, ok := db.Get("k", IntentRead, 1000)
	assert.False(t, ok, "expired key must not be visible")
	assert.Equal(t, 1, db.Size(), "replica must not delete on a read-intent lazy check")
}

func TestSetKeepTTLPreservesExpiration(t *testing.T) {
	db := newTestDB()
	db.Set("k", value.NewString("v"), false)
	db.SetExpiration("k", 99999)

	db.Set("k", value.NewString("v2"), true)
	exp, ok := db.ExpirationOf("k")
	require.True(t, ok)
	assert.EqualValues(t, 99999, exp)
}

func TestSetWithoutKeepTTLClearsExpiration(t *testing.T) {
	db := newTestDB()
	db.Set("k", value.NewString("v"), false)
	db.SetExpiration("k", 99999)

	db.Set("k", value.NewString("v2"), false)
	_, ok := db.ExpirationOf("k")
	assert.False(t, ok)
}

func TestRenameMovesValueAndTTL(t *testing.T) {
	db := newTestDB()
	db.Set("a", value.NewString("1"), false)
	db.SetExpiration("a", 5000)

	ok := db.Rename("a", "b", true, 0)
	require.True(t, ok)

	_, existed := db.Get("a", IntentRead, 0)
	assert.False(t, existed)

	v, ok := db.Get("b", IntentRead, 0)
	require.True(t, ok)
	assert.Equal(t, "1", v.Str)

	exp, ok := db.ExpirationOf("b")
	require.True(t, ok)
	assert.EqualValues(t, 5000, exp)
}

func TestRenameWithoutOverwriteFailsWhenDestExists(t *testing.T) {
	db := newTestDB()
	db.Set("a", value.NewString("1"), false)
	db.Set("b", value.NewString("2"), false)

	ok := db.Rename("a", "b", false, 0)
	assert.False(t, ok)
}

func TestScanMatchesGlobAndSkipsExpired(t *testing.T) {
	db := newTestDB()
	for i := 0; i < 20; i++ {
		db.Set(string(rune('a'+i))+":x", value.NewString("v"), false)
	}
	db.Set("zzz:x", value.NewString("v"), false)
	db.SetExpiration("zzz:x", 1)

	var all []string
	cursor := uint64(0)
	for {
		res := db.Scan(cursor, 5, "*:x", 0, false, 1000)
		all = append(all, res.Keys...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	assert.Len(t, all, 20)
}

func TestBlockedClientsServedInArrivalOrder(t *testing.T) {
	db := newTestDB()
	c1 := &BlockedClient{ID: 1}
	c2 := &BlockedClient{ID: 2}
	db.BlockClient(c1, []string{"q"})
	db.BlockClient(c2, []string{"q"})

	first, ok := db.PopWaiter("q")
	require.True(t, ok)
	assert.Equal(t, c1, first)

	second, ok := db.PopWaiter("q")
	require.True(t, ok)
	assert.Equal(t, c2, second)

	_, ok = db.PopWaiter("q")
	assert.False(t, ok)
}

func TestSignalKeyReadyOnlyWhenClientsBlocked(t *testing.T) {
	db := NewServer(1, 0xC0FFEE, EvictNone, 0, value.DefaultThresholds, nil, zap.NewNop()).Databases[0]
	db.SignalKeyModified("nobody-waiting")
	assert.Empty(t, db.DrainReady())

	db.BlockClient(&BlockedClient{ID: 1}, []string{"q"})
	db.Set("q", value.NewList(), false)
	assert.Equal(t, []string{"q"}, db.DrainReady())
	assert.Empty(t, db.DrainReady())
}

func TestExpirationEngineSweepsExpiredKeys(t *testing.T) {
	db := newTestDB()
	for i := 0; i < 50; i++ {
		k := string(rune('a' + i%26))
		db.Set(k, value.NewString("v"), false)
		db.SetExpiration(k, 1) // already in the past relative to nowMS below
	}

	e := NewExpirationEngine()
	e.SampleSize = 50
	e.FastBudgetNS = 3
	var calls int64
	nowNS := func() int64 { calls++; return calls }
	res := e.Tick([]*Database{db}, 1_000_000, nowNS)
	assert.Greater(t, res.Expired, 0)
}

func TestEvictionEngineEvictsUntilUnderCap(t *testing.T) {
	db := newTestDB()
	for i := 0; i < 10; i++ {
		db.Set(string(rune('a'+i)), value.NewString("v"), false)
	}

	used := int64(100)
	eng := NewEvictionEngine(EvictRandomAll, func() int64 { return used }, 50)
	eng.SamplePerRound = 10
	eng.PoolSize = 10

	evicted := 0
	eng.OnEvict = func(dbID int, key string) {
		evicted++
		used -= 10
	}

	err := eng.MaybeEvict([]*Database{db}, 0, func() float64 { return 0.5 }, 0)
	require.NoError(t, err)
	assert.Greater(t, evicted, 0)
	assert.LessOrEqual(t, used, int64(50))
}

func TestEvictionPolicyNoneFailsOverCap(t *testing.T) {
	eng := NewEvictionEngine(EvictNone, func() int64 { return 200 }, 100)
	err := eng.MaybeEvict(nil, 0, func() float64 { return 0 }, 0)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
