package command

import "github.com/keydcore/keyd/internal/store"

// QueuedCommand is one command enqueued by MULTI, waiting for EXEC.
type QueuedCommand struct {
	Name string
	Args []string
}

// watchedKey remembers the modification epoch a key had at WATCH time, so
// EXEC can tell whether anything wrote to it since.
type watchedKey struct {
	db    int
	key   string
	epoch uint64
}

// Client is the connection-bound state the command loop owns exclusively.
// internal/server constructs one per connection and feeds it into Context
// for every command on that connection.
type Client struct {
	ID   uint64
	Name string
	DB   int

	InMulti    bool
	DirtyCAS   bool
	QueueError bool
	Queue      []QueuedCommand
	watching   []watchedKey

	Blocked *store.BlockedClient

	closing bool
}

// NewClient builds a fresh Client selected onto database 0.
func NewClient(id uint64) *Client {
	return &Client{ID: id, DB: 0}
}

// BeginMulti sets the MULTI flag; subsequent commands (other than EXEC,
// DISCARD, WATCH, MULTI itself and the admin commands) are queued rather
// than executed.
func (c *Client) BeginMulti() { c.InMulti = true }

// ResetTransaction clears MULTI/queue/dirty/watch state, used by both
// DISCARD and a completed EXEC.
func (c *Client) ResetTransaction() {
	c.InMulti = false
	c.DirtyCAS = false
	c.QueueError = false
	c.Queue = nil
	c.watching = nil
}

func (c *Client) Enqueue(name string, args []string) {
	c.Queue = append(c.Queue, QueuedCommand{Name: name, Args: args})
}

func (c *Client) Watch(db int, key string, epoch uint64) {
	c.watching = append(c.watching, watchedKey{db: db, key: key, epoch: epoch})
}

func (c *Client) Unwatch() { c.watching = nil }

// CheckWatches marks the client dirty if any watched key's current epoch
// has moved past what it was at WATCH time.
func (c *Client) CheckWatches(currentEpoch func(db int, key string) uint64) {
	for _, w := range c.watching {
		if currentEpoch(w.db, w.key) != w.epoch {
			c.DirtyCAS = true
			return
		}
	}
}
