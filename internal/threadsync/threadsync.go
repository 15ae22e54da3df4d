// Package threadsync keeps each post bound to one Discord forum thread and
// brings that thread into a readable state before its messages are listed.
package threadsync

import (
	"context"

	"appcompat/api/internal/discord"
	"appcompat/api/internal/store"
)

// Directory is the persistent post to thread mapping.
type Directory interface {
	GetPost(ctx context.Context, postID string) (store.Post, error)
	// BindThread writes threadID only while no thread is bound and reports the
	// binding in effect afterwards together with whether this call wrote it.
	BindThread(ctx context.Context, postID, threadID string) (bound string, won bool, err error)
}

// Messenger is the capability set used against the messaging platform.
type Messenger interface {
	CreateThread(ctx context.Context, parentID, name, seed string) (discord.ThreadRef, error)
	GetChannel(ctx context.Context, channelID string) (discord.ChannelMeta, error)
	SetArchived(ctx context.Context, channelID string, archived bool) error
	ListMessages(ctx context.Context, channelID string, limit int) ([]discord.RawMessage, error)
}

// Recorder receives lifecycle events; metrics.Metrics implements it.
type Recorder interface {
	ThreadProvisioned()
	ThreadOrphaned()
	ThreadUnarchived()
}

type nopRecorder struct{}

func (nopRecorder) ThreadProvisioned() {}
func (nopRecorder) ThreadOrphaned()    {}
func (nopRecorder) ThreadUnarchived()  {}
