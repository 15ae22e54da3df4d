package threadsync

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"appcompat/api/internal/discord"
)

func newTestReconciler(msg *fakeMessenger, rec Recorder) *Reconciler {
	return NewReconciler(msg, ReconcilerConfig{
		SettleInterval: time.Millisecond,
		SettleTimeout:  100 * time.Millisecond,
		Logger:         discardLogger(),
		Recorder:       rec,
	})
}

// archivedUntil reports the thread archived for the first n reads.
func archivedUntil(n int32) func(context.Context, string) (discord.ChannelMeta, error) {
	var reads atomic.Int32
	return func(_ context.Context, id string) (discord.ChannelMeta, error) {
		read := reads.Add(1)
		return discord.ChannelMeta{ID: id, GuildID: "guild-1", Kind: discord.KindPublicThread, Type: 11, Archived: read <= n}, nil
	}
}

func TestReconcilerUnarchivedIsNoop(t *testing.T) {
	msg := &fakeMessenger{}
	meta, err := newTestReconciler(msg, nil).Ensure(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if meta.Archived {
		t.Fatal("expected unarchived meta")
	}
	if calls := msg.callLog(); !slices.Equal(calls, []string{"get"}) {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestReconcilerUnarchivesAndPolls(t *testing.T) {
	rec := &countingRecorder{}
	msg := &fakeMessenger{getChannelFn: archivedUntil(3)}

	meta, err := newTestReconciler(msg, rec).Ensure(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if meta.Archived {
		t.Fatal("expected settled meta to be unarchived")
	}
	want := []string{"get", "unarchive", "get", "get", "get"}
	if calls := msg.callLog(); !slices.Equal(calls, want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
	if rec.unarchived.Load() != 1 {
		t.Fatalf("expected one unarchive recorded, got %d", rec.unarchived.Load())
	}
}

func TestReconcilerWaitsAtLeastOneInterval(t *testing.T) {
	msg := &fakeMessenger{getChannelFn: archivedUntil(1)}
	r := NewReconciler(msg, ReconcilerConfig{
		SettleInterval: 30 * time.Millisecond,
		SettleTimeout:  time.Second,
		Logger:         discardLogger(),
	})

	started := time.Now()
	if _, err := r.Ensure(context.Background(), "thread-1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 30*time.Millisecond {
		t.Fatalf("expected a settling wait, returned after %v", elapsed)
	}
}

func TestReconcilerSettleTimeout(t *testing.T) {
	msg := &fakeMessenger{getChannelFn: archivedUntil(1 << 30)}
	r := NewReconciler(msg, ReconcilerConfig{
		SettleInterval: 5 * time.Millisecond,
		SettleTimeout:  40 * time.Millisecond,
		Logger:         discardLogger(),
	})

	_, err := r.Ensure(context.Background(), "thread-1")
	if !errors.Is(err, ErrReconciliationFailed) {
		t.Fatalf("expected ErrReconciliationFailed, got %v", err)
	}
}

func TestReconcilerSetArchivedFailure(t *testing.T) {
	msg := &fakeMessenger{
		getChannelFn: archivedUntil(1),
		setArchivedFn: func(context.Context, string, bool) error {
			return errors.New("Missing Permissions")
		},
	}

	_, err := newTestReconciler(msg, nil).Ensure(context.Background(), "thread-1")
	if !errors.Is(err, ErrReconciliationFailed) {
		t.Fatalf("expected ErrReconciliationFailed, got %v", err)
	}
	if msg.count("get") != 1 {
		t.Fatalf("expected no polling after failed unarchive, got %v", msg.callLog())
	}
}

func TestReconcilerGetChannelFailure(t *testing.T) {
	msg := &fakeMessenger{
		getChannelFn: func(context.Context, string) (discord.ChannelMeta, error) {
			return discord.ChannelMeta{}, errors.New("Unknown Channel")
		},
	}
	_, err := newTestReconciler(msg, nil).Ensure(context.Background(), "thread-1")
	if !errors.Is(err, ErrReconciliationFailed) {
		t.Fatalf("expected ErrReconciliationFailed, got %v", err)
	}
}

func TestReconcilerInvalidKind(t *testing.T) {
	for _, kind := range []discord.ChannelKind{discord.KindUnknown, ""} {
		msg := &fakeMessenger{
			getChannelFn: func(_ context.Context, id string) (discord.ChannelMeta, error) {
				return discord.ChannelMeta{ID: id, Kind: kind, Type: 15, Archived: true}, nil
			},
		}
		_, err := newTestReconciler(msg, nil).Ensure(context.Background(), "forum-1")
		if !errors.Is(err, ErrInvalidResourceKind) {
			t.Fatalf("kind %q: expected ErrInvalidResourceKind, got %v", kind, err)
		}
		if msg.count("unarchive") != 0 {
			t.Fatalf("kind %q: must not touch a non-thread channel", kind)
		}
	}
}

func TestReconcilerHonoursCancellation(t *testing.T) {
	msg := &fakeMessenger{getChannelFn: archivedUntil(1 << 30)}
	r := NewReconciler(msg, ReconcilerConfig{
		SettleInterval: 10 * time.Millisecond,
		SettleTimeout:  10 * time.Second,
		Logger:         discardLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := r.Ensure(ctx, "thread-1")
	if !errors.Is(err, ErrReconciliationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected reconciliation failure wrapping deadline, got %v", err)
	}
	if time.Since(started) > time.Second {
		t.Fatal("settle loop ignored cancellation")
	}
}
