// Package store implements the Database keyspace, the active expiration
// engine, the eviction engine, and the server-wide root that owns them as
// a single shared value.
package store

import (
	"github.com/tidwall/match"
	"go.uber.org/zap"

	"github.com/keydcore/keyd/internal/dict"
	"github.com/keydcore/keyd/internal/value"
)

// Intent distinguishes a read lookup (which may skip deleting an expired
// key on a replica) from a write lookup.
type Intent int

const (
	IntentRead Intent = iota
	IntentWrite
)

// Role distinguishes primary from replica for lazy-expiration semantics.
type Role int

const (
	RolePrimary Role = iota
	RoleReplica
)

// BlockedClient is the minimal handle the blocked-keys index needs: a
// stable id plus a channel the command loop wakes when the key it is
// waiting on becomes ready.
type BlockedClient struct {
	ID     uint64
	Notify chan struct{}
}

// Database is one selectable keyspace: a Dict of keys to
// values, a parallel Dict of keys to absolute expiration timestamps, and
// the blocked/ready-key indices that back blocking commands.
type Database struct {
	id int

	keyspace *dict.Dict
	expires  *dict.Dict

	blocked map[string][]*BlockedClient
	ready   []string
	epochs  map[string]uint64

	role Role
	log  *zap.Logger

	onModified func(dbID int, key string)
	onExpired  func(dbID int, key string) // drives journal propagation of lazy/active deletes
}

// NewDatabase constructs database id, keyed with the given hash seed.
func NewDatabase(id int, seed uint64, log *zap.Logger) *Database {
	return &Database{
		id:       id,
		keyspace: dict.New(seed),
		expires:  dict.New(seed),
		blocked:  make(map[string][]*BlockedClient),
		epochs:   make(map[string]uint64),
		log:      log,
	}
}

// KeyEpoch returns how many times key has been modified, the backing
// counter for WATCH/DIRTY_CAS. Never-modified keys read as epoch 0.
func (d *Database) KeyEpoch(key string) uint64 { return d.epochs[key] }

// ResetID rebinds which server-slice index this database reports itself
// under when signaling modification/expiration, used by SWAPDB to keep
// those callbacks routed correctly after two slice slots trade places.
func (d *Database) ResetID(id int) { d.id = id }

// SetRole switches lazy-expiration behavior: a replica never deletes a
// logically-expired key itself; deletion must arrive from the
// primary's journal/replication stream.
func (d *Database) SetRole(r Role) { d.role = r }

// Size returns the number of live keys (ignoring lazy expiration), used by
// DBSIZE.
func (d *Database) Size() int { return d.keyspace.Len() }

// isExpiredAt reports whether key's TTL (if any) has passed as of nowMS.
func (d *Database) isExpiredAt(key string, nowMS int64) bool {
	exp, ok := d.expires.PeekLookup(key)
	if !ok {
		return false
	}
	return nowMS > exp.(int64)
}

// Get resolves key honoring lazy expiration. A Write intent
// always deletes an expired key before reporting it absent; a Read intent
// does the same unless this database is acting as a replica, in which case
// a logically-expired-but-still-present key is hidden without being
// deleted (so the primary's delete stays authoritative).
func (d *Database) Get(key string, intent Intent, nowMS int64) (*value.Value, bool) {
	v, ok := d.keyspace.Lookup(key)
	if !ok {
		return nil, false
	}
	if d.isExpiredAt(key, nowMS) {
		if intent == IntentWrite || d.role == RolePrimary {
			d.deleteExpired(key)
		}
		return nil, false
	}
	return v.(*value.Value), true
}

// Peek is Get without driving the Dict's opportunistic rehash, used by
// read-mostly introspection commands that must not perturb iteration.
func (d *Database) Peek(key string, nowMS int64) (*value.Value, bool) {
	v, ok := d.keyspace.PeekLookup(key)
	if !ok || d.isExpiredAt(key, nowMS) {
		return nil, false
	}
	return v.(*value.Value), true
}

// Set installs value for key. Unless keepTTL is set, any existing
// expiration is cleared (invariant: "set preserving TTL must
// not alter the expiration Dict entry").
func (d *Database) Set(key string, v *value.Value, keepTTL bool) {
	d.keyspace.Replace(key, v)
	if !keepTTL {
		d.expires.Remove(key)
	}
	d.SignalKeyModified(key)
}

// Delete removes key from both dicts. The two removals happen within a
// single Go call with no yield point in between, so callers see them as
// atomic under the single-mutator model.
func (d *Database) Delete(key string) (*value.Value, bool) {
	v, ok := d.keyspace.Remove(key)
	d.expires.Remove(key)
	if ok {
		d.SignalKeyModified(key)
		return v.(*value.Value), true
	}
	return nil, false
}

func (d *Database) deleteExpired(key string) {
	d.keyspace.Remove(key)
	d.expires.Remove(key)
	if d.onExpired != nil {
		d.onExpired(d.id, key)
	}
	d.SignalKeyModified(key)
}

// SetExpiration installs an absolute millisecond expiration for an
// existing key. A non-positive TTL relative to "now" makes the key
// eligible for immediate deletion; callers computing EXPIRE's
// relative TTL should pass the already-resolved absolute timestamp.
func (d *Database) SetExpiration(key string, absoluteMS int64) bool {
	if _, ok := d.keyspace.PeekLookup(key); !ok {
		return false
	}
	d.expires.Replace(key, absoluteMS)
	d.SignalKeyModified(key)
	return true
}

func (d *Database) ClearExpiration(key string) bool {
	_, existed := d.expires.Remove(key)
	if existed {
		d.SignalKeyModified(key)
	}
	return existed
}

// ExpirationOf returns the absolute expiration (ms) of key, if any.
func (d *Database) ExpirationOf(key string) (int64, bool) {
	v, ok := d.expires.PeekLookup(key)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// RandomKey returns a uniformly random live key, retrying past any
// expired sample (bounded, to avoid spinning on an all-expired keyspace).
func (d *Database) RandomKey(nowMS int64) (string, bool) {
	for tries := 0; tries < 100; tries++ {
		e, ok := d.keyspace.RandomEntry()
		if !ok {
			return "", false
		}
		if d.isExpiredAt(e.Key, nowMS) {
			continue
		}
		return e.Key, true
	}
	return "", false
}

// Exists reports how many of keys are present and unexpired.
func (d *Database) Exists(keys []string, nowMS int64) int {
	n := 0
	for _, k := range keys {
		if _, ok := d.Get(k, IntentRead, nowMS); ok {
			n++
		}
	}
	return n
}

// Rename moves from's value (and TTL) to to. If overwrite is false and to
// already exists, Rename fails.
func (d *Database) Rename(from, to string, overwrite bool, nowMS int64) bool {
	v, ok := d.Get(from, IntentWrite, nowMS)
	if !ok {
		return false
	}
	if !overwrite {
		if _, exists := d.Get(to, IntentRead, nowMS); exists {
			return false
		}
	}
	exp, hadExp := d.ExpirationOf(from)
	d.Delete(from)
	d.Set(to, v, false)
	if hadExp {
		d.SetExpiration(to, exp)
	}
	return true
}

// Flush discards all keys, replacing both dicts.
func (d *Database) Flush(seed uint64) {
	d.keyspace = dict.New(seed)
	d.expires = dict.New(seed)
	d.blocked = make(map[string][]*BlockedClient)
	d.ready = nil
	d.epochs = make(map[string]uint64)
}

// ScanResult is one page of a cursor-driven SCAN/KEYS walk.
type ScanResult struct {
	Cursor uint64
	Keys   []string
}

// Scan delegates to Dict.Scan and applies MATCH/TYPE post-filtering, glob
// matching via tidwall/match.
func (d *Database) Scan(cursor uint64, count int, matchPattern string, typeFilter value.Type, hasTypeFilter bool, nowMS int64) ScanResult {
	next, batch := d.keyspace.Scan(cursor, count)
	out := make([]string, 0, len(batch))
	for _, e := range batch {
		if d.isExpiredAt(e.Key, nowMS) {
			continue
		}
		if matchPattern != "" && !match.Match(e.Key, matchPattern) {
			continue
		}
		if hasTypeFilter && e.Value.(*value.Value).Type != typeFilter {
			continue
		}
		out = append(out, e.Key)
	}
	return ScanResult{Cursor: next, Keys: out}
}

// SignalKeyModified bumps key's epoch (the counter WATCH compares) and
// calls onModified, through which the server root passes key on to
// SignalKeyReady.
func (d *Database) SignalKeyModified(key string) {
	d.epochs[key]++
	if d.onModified != nil {
		d.onModified(d.id, key)
	}
}

// SignalKeyReady records that key just acquired data while clients may be
// blocked waiting on it. The command loop drains the list with DrainReady
// after each command.
func (d *Database) SignalKeyReady(key string) {
	if _, blocked := d.blocked[key]; blocked {
		d.ready = append(d.ready, key)
	}
}

// DrainReady returns and clears the accumulated ready-keys list.
func (d *Database) DrainReady() []string {
	r := d.ready
	d.ready = nil
	return r
}

// BlockClient registers client as waiting on each of keys.
func (d *Database) BlockClient(client *BlockedClient, keys []string) {
	for _, k := range keys {
		d.blocked[k] = append(d.blocked[k], client)
	}
}

// UnblockClient removes client from every key's wait list it may be on.
func (d *Database) UnblockClient(client *BlockedClient, keys []string) {
	for _, k := range keys {
		list := d.blocked[k]
		for i, c := range list {
			if c == client {
				d.blocked[k] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(d.blocked[k]) == 0 {
			delete(d.blocked, k)
		}
	}
}

// WaitersFor returns the clients currently blocked on key, in arrival
// order.
func (d *Database) WaitersFor(key string) []*BlockedClient {
	return d.blocked[key]
}

// PopWaiter removes and returns the first client blocked on key.
func (d *Database) PopWaiter(key string) (*BlockedClient, bool) {
	list := d.blocked[key]
	if len(list) == 0 {
		return nil, false
	}
	c := list[0]
	d.blocked[key] = list[1:]
	if len(d.blocked[key]) == 0 {
		delete(d.blocked, key)
	}
	return c, true
}

// sampleExpiringKeys returns up to n keys from the expiration dict,
// uniformly, for the active expiration sweep.
func (d *Database) sampleExpiringKeys(n int) []dict.Entry {
	return d.expires.Sample(n)
}
