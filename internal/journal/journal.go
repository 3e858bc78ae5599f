// Package journal implements the append-only write journal: every
// keyspace-mutating command is serialized in its canonical re-issuable
// form, appended to a log file, and can be replayed to reconstruct the
// keyspace on startup.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FsyncPolicy controls when Append's data actually reaches disk.
type FsyncPolicy int

const (
	// FsyncNever relies entirely on the OS's own writeback.
	FsyncNever FsyncPolicy = iota
	// FsyncEverySecond runs a background fsync once a second.
	FsyncEverySecond
	// FsyncAlways fsyncs before Append returns.
	FsyncAlways
)

// Journal owns the live log file and the background fsync worker.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	policy FsyncPolicy
	log    *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	dirtySinceSync bool
}

// Open creates or appends to the journal file at path.
func Open(path string, policy FsyncPolicy, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "journal: open")
	}
	j := &Journal{
		path:   path,
		file:   f,
		writer: bufio.NewWriter(f),
		policy: policy,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if policy == FsyncEverySecond {
		go j.fsyncLoop()
	} else {
		close(j.doneCh)
	}
	return j, nil
}

// fsyncLoop runs once a second until Close, fsyncing only when Append has
// actually written something new since the last pass.
func (j *Journal) fsyncLoop() {
	defer close(j.doneCh)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.mu.Lock()
			if j.dirtySinceSync {
				if err := j.flushLocked(); err != nil {
					j.log.Warn("journal fsync failed", zap.Error(err))
				}
				j.dirtySinceSync = false
			}
			j.mu.Unlock()
		case <-j.stopCh:
			return
		}
	}
}

// Append serializes args in RESP multibulk form and writes it to the log.
// Under FsyncAlways the write is flushed and fsynced before Append
// returns; under the other two policies it returns once the command is in
// the journal's in-process buffer, which FsyncEverySecond flushes once a
// second and FsyncNever writes out only when the buffer fills or on Close.
func (j *Journal) Append(args []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.writer.WriteString(encodeMultibulk(args)); err != nil {
		return errors.Wrap(err, "journal: append")
	}
	j.dirtySinceSync = true

	if j.policy == FsyncAlways {
		if err := j.flushLocked(); err != nil {
			return err
		}
		j.dirtySinceSync = false
	}
	return nil
}

func (j *Journal) flushLocked() error {
	if err := j.writer.Flush(); err != nil {
		return errors.Wrap(err, "journal: flush")
	}
	return j.file.Sync()
}

// Close stops the background worker (if any), flushes, and closes the
// underlying file.
func (j *Journal) Close() error {
	j.stopOnce.Do(func() { close(j.stopCh) })
	<-j.doneCh
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.flushLocked(); err != nil {
		return err
	}
	return j.file.Close()
}

// encodeMultibulk renders args in the canonical RESP array-of-bulk-strings
// form the wire protocol uses, so the journal can be replayed through the
// exact same parser that handles client input.
func encodeMultibulk(args []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(a), a)
	}
	return b.String()
}

// Replay reads every command from path and invokes apply for each one, in
// order. If lenient is true, a truncated final command (EOF mid-record)
// is silently dropped rather than treated as an error.
func Replay(path string, lenient bool, apply func(args []string) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "journal: open for replay")
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		args, err := readMultibulk(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if lenient && isTruncation(err) {
				return nil
			}
			return errors.Wrap(err, "journal: replay")
		}
		if err := apply(args); err != nil {
			return errors.Wrap(err, "journal: apply")
		}
	}
}

type truncationError struct{ error }

func isTruncation(err error) bool {
	_, ok := err.(truncationError)
	return ok
}

func readMultibulk(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != '*' {
		return nil, truncationError{errors.New("journal: expected array header")}
	}
	var n int
	if _, err := fmt.Sscanf(line, "*%d", &n); err != nil {
		return nil, truncationError{errors.Wrap(err, "journal: bad array header")}
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		bulkLine, err := readLine(r)
		if err != nil {
			return nil, truncationError{err}
		}
		var blen int
		if len(bulkLine) == 0 || bulkLine[0] != '$' {
			return nil, truncationError{errors.New("journal: expected bulk header")}
		}
		if _, err := fmt.Sscanf(bulkLine, "$%d", &blen); err != nil {
			return nil, truncationError{errors.Wrap(err, "journal: bad bulk header")}
		}
		buf := make([]byte, blen+2) // +2 for the trailing CRLF
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, truncationError{err}
		}
		args = append(args, string(buf[:blen]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", io.EOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Rewrite atomically replaces the live log with a minimal reconstruction:
// dump() produces the commands that rebuild the current keyspace, written
// to a temp file and renamed over path in one step via natefinch/atomic
// (background-rewrite-and-rename). Any diff accumulated by
// concurrent Appends during dump() is preserved because Append only ever
// touches the already-open file handle, not the path; Rewrite opens its
// own handle for the replacement and reopens path afterward.
func (j *Journal) Rewrite(dump func(emit func(args []string) error) error) error {
	j.mu.Lock()
	if err := j.flushLocked(); err != nil {
		j.mu.Unlock()
		return err
	}
	j.mu.Unlock()

	pr, pw := io.Pipe()
	var dumpErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pw.Close()
		dumpErr = dump(func(args []string) error {
			_, err := pw.Write([]byte(encodeMultibulk(args)))
			return err
		})
	}()

	if err := atomic.WriteFile(j.path+".rewrite", pr); err != nil {
		<-done
		return errors.Wrap(err, "journal: write rewrite temp")
	}
	<-done
	if dumpErr != nil {
		return errors.Wrap(dumpErr, "journal: dump")
	}

	if err := atomic.ReplaceFile(j.path+".rewrite", j.path); err != nil {
		return errors.Wrap(err, "journal: atomic rename")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.file.Close()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "journal: reopen after rewrite")
	}
	j.file = f
	j.writer = bufio.NewWriter(f)
	return nil
}
