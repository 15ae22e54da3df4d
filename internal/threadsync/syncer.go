package threadsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"appcompat/api/internal/discord"
)

const DefaultWebBase = "https://discord.com"

// Discussion is the result of one synchronization call.
type Discussion struct {
	Messages      []Message `json:"messages"`
	DiscussionURL string    `json:"discussionUrl"`
}

// ThreadView is a read-only listing of a thread that is never provisioned or
// unarchived.
type ThreadView struct {
	ThreadID string    `json:"threadId"`
	Kind     string    `json:"kind"`
	Archived bool      `json:"archived"`
	Messages []Message `json:"messages"`
}

type SyncerConfig struct {
	WebBase string
	// GuildID is used for the discussion URL when the channel read does not
	// report one.
	GuildID string
	Logger  *slog.Logger
}

// Syncer runs provision, reconcile and retrieve strictly in that order.
type Syncer struct {
	dir         Directory
	messenger   Messenger
	provisioner *Provisioner
	reconciler  *Reconciler
	webBase     string
	guildID     string
	logger      *slog.Logger
}

func NewSyncer(dir Directory, messenger Messenger, provisioner *Provisioner, reconciler *Reconciler, cfg SyncerConfig) *Syncer {
	s := &Syncer{
		dir:         dir,
		messenger:   messenger,
		provisioner: provisioner,
		reconciler:  reconciler,
		webBase:     strings.TrimRight(strings.TrimSpace(cfg.WebBase), "/"),
		guildID:     cfg.GuildID,
		logger:      cfg.Logger,
	}
	if s.webBase == "" {
		s.webBase = DefaultWebBase
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// DiscussionURL builds the browser link for a thread from IDs alone.
func DiscussionURL(webBase, guildID, threadID string) string {
	return strings.TrimRight(webBase, "/") + "/channels/" + guildID + "/" + threadID
}

// Sync ensures postID has a readable thread and returns its latest messages.
func (s *Syncer) Sync(ctx context.Context, postID string) (Discussion, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return Discussion{}, ErrNotFound
	}

	post, err := s.dir.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Discussion{}, ErrNotFound
		}
		return Discussion{}, fmt.Errorf("%w: load post: %w", ErrProvisioningFailed, err)
	}

	threadID, err := s.provisioner.Ensure(ctx, post)
	if err != nil {
		return Discussion{}, err
	}

	meta, err := s.reconciler.Ensure(ctx, threadID)
	if err != nil {
		s.logStaleBinding(postID, threadID, err)
		return Discussion{}, err
	}

	raw, err := s.messenger.ListMessages(ctx, threadID, MaxMessages)
	if err != nil {
		return Discussion{}, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	guildID := meta.GuildID
	if guildID == "" {
		guildID = s.guildID
	}
	return Discussion{
		Messages:      Normalize(raw),
		DiscussionURL: DiscussionURL(s.webBase, guildID, threadID),
	}, nil
}

// View lists a thread's messages without touching its state. Channels that
// are not threads are rejected before any listing.
func (s *Syncer) View(ctx context.Context, threadID string) (ThreadView, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return ThreadView{}, ErrNotFound
	}

	meta, err := s.messenger.GetChannel(ctx, threadID)
	if err != nil {
		if discord.StatusCode(err) == http.StatusNotFound {
			return ThreadView{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return ThreadView{}, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	if !meta.Kind.IsThread() {
		return ThreadView{}, fmt.Errorf("%w: channel %s has type %d", ErrInvalidResourceKind, threadID, meta.Type)
	}

	raw, err := s.messenger.ListMessages(ctx, threadID, MaxMessages)
	if err != nil {
		return ThreadView{}, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	return ThreadView{
		ThreadID: threadID,
		Kind:     string(meta.Kind),
		Archived: meta.Archived,
		Messages: Normalize(raw),
	}, nil
}

// logStaleBinding flags bindings that point at a deleted or foreign channel.
// The binding is left in place.
func (s *Syncer) logStaleBinding(postID, threadID string, err error) {
	status := discord.StatusCode(err)
	if !errors.Is(err, ErrInvalidResourceKind) && status != http.StatusNotFound && status != http.StatusForbidden {
		return
	}
	s.logger.Warn("stale_thread_binding",
		"post_id", postID,
		"thread_id", threadID,
		"status", status,
		"error", err.Error(),
	)
}
