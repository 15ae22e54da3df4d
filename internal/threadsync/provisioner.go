package threadsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"appcompat/api/internal/lock"
	"appcompat/api/internal/store"
)

const orphanCleanupTimeout = 10 * time.Second

// ThreadName is the title given to a post's discussion thread.
func ThreadName(title string) string {
	return "Discussion for " + title
}

// SeedMessage is the first message posted into a new thread.
func SeedMessage(title, description string) string {
	return fmt.Sprintf("A new app has been added: %s\n\nDescription: %s\n\nDiscuss this app here!", title, description)
}

func provisionLockKey(postID string) string {
	return "thread-provision:" + postID
}

type ProvisionerConfig struct {
	ParentChannelID string
	Locker          lock.Locker
	Logger          *slog.Logger
	Recorder        Recorder
}

// Provisioner guarantees a post has exactly one bound thread. Creation runs
// under a per-post lock and is committed with a conditional write, so a lock
// that expired under a slow call still cannot produce two bindings.
type Provisioner struct {
	dir       Directory
	messenger Messenger
	parentID  string
	locker    lock.Locker
	logger    *slog.Logger
	recorder  Recorder
}

func NewProvisioner(dir Directory, messenger Messenger, cfg ProvisionerConfig) *Provisioner {
	p := &Provisioner{
		dir:       dir,
		messenger: messenger,
		parentID:  cfg.ParentChannelID,
		locker:    cfg.Locker,
		logger:    cfg.Logger,
		recorder:  cfg.Recorder,
	}
	if p.locker == nil {
		p.locker = lock.NewLocal(lock.Options{})
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}
	return p
}

// Ensure returns the thread bound to post, creating and binding one if none
// is bound yet. A thread ID already present on post is trusted as is.
func (p *Provisioner) Ensure(ctx context.Context, post store.Post) (string, error) {
	if threadID := post.BoundThreadID(); threadID != "" {
		return threadID, nil
	}
	if p.parentID == "" {
		return "", fmt.Errorf("%w: forum channel is not configured", ErrProvisioningFailed)
	}

	release, err := p.locker.Acquire(ctx, provisionLockKey(post.ID))
	if err != nil {
		return "", fmt.Errorf("%w: acquire provisioning lock: %w", ErrProvisioningFailed, err)
	}
	defer release()

	current, err := p.dir.GetPost(ctx, post.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: reload post: %w", ErrProvisioningFailed, err)
	}
	if threadID := current.BoundThreadID(); threadID != "" {
		return threadID, nil
	}

	ref, err := p.messenger.CreateThread(ctx, p.parentID, ThreadName(current.Title), SeedMessage(current.Title, current.Description))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	bound, won, err := p.dir.BindThread(ctx, post.ID, ref.ID)
	if err != nil {
		p.discardOrphan(ref.ID, post.ID, "bind failed")
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}
	if !won {
		p.discardOrphan(ref.ID, post.ID, "lost conditional write to "+bound)
		if bound == "" {
			return "", fmt.Errorf("%w: post %s rejected the binding but has no thread", ErrProvisioningFailed, post.ID)
		}
		return bound, nil
	}

	p.recorder.ThreadProvisioned()
	p.logger.Info("thread_provisioned",
		"post_id", post.ID,
		"thread_id", ref.ID,
		"guild_id", ref.GuildID,
		"parent_id", ref.ParentID,
	)
	return ref.ID, nil
}

// discardOrphan archives a thread that ended up unbound. Failure is logged
// only; the post's binding is already settled.
func (p *Provisioner) discardOrphan(threadID, postID, reason string) {
	p.recorder.ThreadOrphaned()
	p.logger.Warn("thread_orphaned", "post_id", postID, "thread_id", threadID, "reason", reason)

	ctx, cancel := context.WithTimeout(context.Background(), orphanCleanupTimeout)
	defer cancel()
	if err := p.messenger.SetArchived(ctx, threadID, true); err != nil {
		p.logger.Warn("orphan_archive_failed", "thread_id", threadID, "error", err.Error())
	}
}
