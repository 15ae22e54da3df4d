package threadsync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"appcompat/api/internal/discord"
	"appcompat/api/internal/lock"
	"appcompat/api/internal/logging"
	"appcompat/api/internal/store"
)

func discardLogger() *slog.Logger {
	return logging.Discard()
}

type fakeDirectory struct {
	mu    sync.Mutex
	posts map[string]store.Post

	getPostFn    func(context.Context, string) (store.Post, error)
	bindThreadFn func(context.Context, string, string) (string, bool, error)
	bindCalls    int
}

func newFakeDirectory(posts ...store.Post) *fakeDirectory {
	d := &fakeDirectory{posts: make(map[string]store.Post)}
	for _, p := range posts {
		d.posts[p.ID] = p
	}
	return d
}

func (d *fakeDirectory) GetPost(ctx context.Context, postID string) (store.Post, error) {
	if d.getPostFn != nil {
		return d.getPostFn(ctx, postID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	post, ok := d.posts[postID]
	if !ok {
		return store.Post{}, sql.ErrNoRows
	}
	return post, nil
}

func (d *fakeDirectory) BindThread(ctx context.Context, postID, threadID string) (string, bool, error) {
	d.mu.Lock()
	d.bindCalls++
	d.mu.Unlock()
	if d.bindThreadFn != nil {
		return d.bindThreadFn(ctx, postID, threadID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	post, ok := d.posts[postID]
	if !ok {
		return "", false, sql.ErrNoRows
	}
	if existing := post.BoundThreadID(); existing != "" {
		return existing, false, nil
	}
	id := threadID
	post.ThreadID = &id
	d.posts[postID] = post
	return threadID, true, nil
}

func (d *fakeDirectory) boundThread(postID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.posts[postID].BoundThreadID()
}

// fakeMessenger records every call in order. Unset hooks behave like a
// healthy platform holding unarchived public threads.
type fakeMessenger struct {
	mu    sync.Mutex
	calls []string

	created  int32
	archived []string

	createDelay time.Duration

	createThreadFn func(context.Context, string, string, string) (discord.ThreadRef, error)
	getChannelFn   func(context.Context, string) (discord.ChannelMeta, error)
	setArchivedFn  func(context.Context, string, bool) error
	listMessagesFn func(context.Context, string, int) ([]discord.RawMessage, error)
}

func (m *fakeMessenger) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *fakeMessenger) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *fakeMessenger) count(call string) int {
	n := 0
	for _, c := range m.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) CreateThread(ctx context.Context, parentID, name, seed string) (discord.ThreadRef, error) {
	m.record("create")
	n := atomic.AddInt32(&m.created, 1)
	if m.createDelay > 0 {
		time.Sleep(m.createDelay)
	}
	if m.createThreadFn != nil {
		return m.createThreadFn(ctx, parentID, name, seed)
	}
	return discord.ThreadRef{ID: fmt.Sprintf("thread-%d", n), GuildID: "guild-1", ParentID: parentID}, nil
}

func (m *fakeMessenger) GetChannel(ctx context.Context, channelID string) (discord.ChannelMeta, error) {
	m.record("get")
	if m.getChannelFn != nil {
		return m.getChannelFn(ctx, channelID)
	}
	return discord.ChannelMeta{ID: channelID, GuildID: "guild-1", Kind: discord.KindPublicThread, Type: 11}, nil
}

func (m *fakeMessenger) SetArchived(ctx context.Context, channelID string, archived bool) error {
	if archived {
		m.record("archive")
		m.mu.Lock()
		m.archived = append(m.archived, channelID)
		m.mu.Unlock()
	} else {
		m.record("unarchive")
	}
	if m.setArchivedFn != nil {
		return m.setArchivedFn(ctx, channelID, archived)
	}
	return nil
}

func (m *fakeMessenger) ListMessages(ctx context.Context, channelID string, limit int) ([]discord.RawMessage, error) {
	m.record("list")
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, channelID, limit)
	}
	return nil, nil
}

type countingRecorder struct {
	provisioned atomic.Int32
	orphaned    atomic.Int32
	unarchived  atomic.Int32
}

func (r *countingRecorder) ThreadProvisioned() { r.provisioned.Add(1) }
func (r *countingRecorder) ThreadOrphaned()    { r.orphaned.Add(1) }
func (r *countingRecorder) ThreadUnarchived()  { r.unarchived.Add(1) }

// passthroughLocker grants every Acquire immediately, leaving only the
// conditional write to arbitrate.
type passthroughLocker struct{}

func (passthroughLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

type failingLocker struct{ err error }

func (l failingLocker) Acquire(context.Context, string) (func(), error) {
	return nil, l.err
}

var (
	_ lock.Locker = passthroughLocker{}
	_ lock.Locker = failingLocker{}
	_ Directory   = (*fakeDirectory)(nil)
	_ Messenger   = (*fakeMessenger)(nil)
)

func strPtr(s string) *string { return &s }

func newTestSyncer(dir *fakeDirectory, msg *fakeMessenger, locker lock.Locker, rec Recorder) *Syncer {
	logger := discardLogger()
	provisioner := NewProvisioner(dir, msg, ProvisionerConfig{
		ParentChannelID: "forum-1",
		Locker:          locker,
		Logger:          logger,
		Recorder:        rec,
	})
	reconciler := NewReconciler(msg, ReconcilerConfig{
		SettleInterval: time.Millisecond,
		SettleTimeout:  200 * time.Millisecond,
		Logger:         logger,
		Recorder:       rec,
	})
	return NewSyncer(dir, msg, provisioner, reconciler, SyncerConfig{
		WebBase: "https://discord.com",
		GuildID: "guild-fallback",
		Logger:  logger,
	})
}
