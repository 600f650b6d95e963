package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mslinn/benchledger/pkg/blob"
	"go.uber.org/zap"
)

// Store owns one Ledger. Appends are serialized; readers work on immutable
// snapshots and never observe a partially written entry.
type Store struct {
	mu   sync.Mutex // held for the duration of an append
	snap atomic.Pointer[Ledger]
	log  *zap.Logger

	// version of the persisted ledger this store was loaded from or last
	// saved as; Save to a versioned blob only succeeds while it is current
	saveMu  sync.Mutex
	version blob.Version
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for append diagnostics
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore wraps an existing ledger. The store takes ownership of l.
func NewStore(l *Ledger, opts ...Option) *Store {
	if l == nil {
		l = New("")
	}
	if l.Entries == nil {
		l.Entries = make(map[string][]Entry)
	}

	s := &Store{log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(l)
	return s
}

// Open loads a store from a blob. A blob that does not exist yet yields an
// empty ledger for repoURL.
func Open(ctx context.Context, b blob.Blob, repoURL string, opts ...Option) (*Store, error) {
	data, version, err := read(ctx, b)
	if errors.Is(err, blob.ErrNotFound) {
		return NewStore(New(repoURL), opts...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	l, err := Load(data)
	if err != nil {
		return nil, err
	}
	if l.RepoURL == "" {
		l.RepoURL = repoURL
	}
	s := NewStore(l, opts...)
	s.version = version
	return s, nil
}

func read(ctx context.Context, b blob.Blob) ([]byte, blob.Version, error) {
	if vb, ok := b.(blob.Versioned); ok {
		return vb.ReadVersion(ctx)
	}
	data, err := b.Read(ctx)
	return data, "", err
}

// maxAppendAttempts bounds how often AppendTo re-reads a ledger that another
// writer changed underneath it
const maxAppendAttempts = 10

// AppendTo appends e to group in the ledger persisted in b and writes the
// result back in format. When another writer saves first the write fails
// with blob.ErrConflict; the ledger is then re-read and the append retried
// on top of the other writer's entries, so neither append is lost and a
// duplicate commit is still reported as DuplicateCommitError.
func AppendTo(ctx context.Context, b blob.Blob, repoURL, group string, e Entry, format Format, opts ...Option) (*Store, error) {
	for attempt := 1; ; attempt++ {
		s, err := Open(ctx, b, repoURL, opts...)
		if err != nil {
			return nil, err
		}
		if err := s.Append(group, e); err != nil {
			return nil, err
		}

		err = s.Save(ctx, b, format)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, blob.ErrConflict) || attempt == maxAppendAttempts {
			return nil, err
		}
		s.log.Info("ledger changed during append, retrying",
			zap.String("group", group),
			zap.String("commit", e.Commit.ID),
			zap.Int("attempt", attempt))

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Snapshot returns the current ledger. The result must not be modified.
func (s *Store) Snapshot() *Ledger {
	return s.snap.Load()
}

// Append validates e and adds it to the end of group. On error the ledger is
// left unchanged.
func (s *Store) Append(group string, e Entry) error {
	if group == "" {
		return &ValidationError{Problems: multierrorOf(fmt.Errorf("group name is empty"))}
	}
	if err := Validate(&e); err != nil {
		s.log.Debug("rejected entry", zap.String("group", group), zap.String("commit", e.Commit.ID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	for _, existing := range cur.Entries[group] {
		if existing.Commit.ID == e.Commit.ID && existing.Tool == e.Tool {
			s.log.Debug("duplicate commit", zap.String("group", group), zap.String("commit", e.Commit.ID), zap.String("tool", e.Tool))
			return &DuplicateCommitError{Group: group, CommitID: e.Commit.ID, Tool: e.Tool}
		}
	}

	entry := e.clone()
	if entry.Benches == nil {
		entry.Benches = []Measurement{}
	}

	next := &Ledger{
		LastUpdate: cur.LastUpdate,
		RepoURL:    cur.RepoURL,
		Entries:    make(map[string][]Entry, len(cur.Entries)+1),
	}
	for g, list := range cur.Entries {
		next.Entries[g] = list
	}
	// full slice expression forces a fresh backing array
	old := cur.Entries[group]
	next.Entries[group] = append(old[:len(old):len(old)], entry)

	if entry.Date > next.LastUpdate {
		next.LastUpdate = entry.Date
	}

	s.snap.Store(next)
	s.log.Info("appended entry",
		zap.String("group", group),
		zap.String("commit", entry.Commit.ID),
		zap.String("tool", entry.Tool),
		zap.Int("benches", len(entry.Benches)),
		zap.Int64("date", entry.Date),
	)
	return nil
}

// Save writes the current snapshot to b in the given format. When b is a
// blob.Versioned the write only succeeds if b still holds what this store
// was opened from (or last saved); otherwise the error matches
// blob.ErrConflict and b is left untouched.
func (s *Store) Save(ctx context.Context, b blob.Blob, format Format) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	var data []byte
	var err error
	switch format {
	case FormatScript:
		data, err = SerializeScript(s.Snapshot())
	default:
		data, err = Serialize(s.Snapshot())
	}
	if err != nil {
		return err
	}

	vb, ok := b.(blob.Versioned)
	if !ok {
		if err := b.Write(ctx, data); err != nil {
			return fmt.Errorf("failed to write ledger: %w", err)
		}
		return nil
	}

	version, err := vb.WriteIf(ctx, data, s.version)
	if err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	s.version = version
	return nil
}
