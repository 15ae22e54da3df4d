package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// ChannelKind classifies a channel for the thread lifecycle. Only the three
// thread kinds carry an archive flag and a message history we can sync.
type ChannelKind string

const (
	KindPublicThread       ChannelKind = "public"
	KindAnnouncementThread ChannelKind = "announcement"
	KindPrivateThread      ChannelKind = "private"
	KindUnknown            ChannelKind = "unknown"
)

func (k ChannelKind) IsThread() bool {
	switch k {
	case KindPublicThread, KindAnnouncementThread, KindPrivateThread:
		return true
	default:
		return false
	}
}

func kindOf(t discordgo.ChannelType) ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildPublicThread:
		return KindPublicThread
	case discordgo.ChannelTypeGuildNewsThread:
		return KindAnnouncementThread
	case discordgo.ChannelTypeGuildPrivateThread:
		return KindPrivateThread
	default:
		return KindUnknown
	}
}

// ThreadRef identifies a freshly created thread.
type ThreadRef struct {
	ID       string
	GuildID  string
	ParentID string
}

// ChannelMeta is a point-in-time read of a channel. It is never cached.
type ChannelMeta struct {
	ID       string
	ParentID string
	GuildID  string
	Kind     ChannelKind
	Type     int
	Archived bool
}

// RawMessage is a message as the platform returned it.
type RawMessage struct {
	ID              string
	Content         string
	AuthorID        string
	AuthorUsername  string
	AuthorAvatarKey string
	CreatedAt       time.Time
}

// AvatarURL returns the CDN URL of the author's avatar, or "" when the author
// has no custom avatar.
func (m RawMessage) AvatarURL() string {
	if m.AuthorID == "" || m.AuthorAvatarKey == "" {
		return ""
	}
	return discordgo.EndpointUserAvatar(m.AuthorID, m.AuthorAvatarKey)
}

func channelMeta(ch *discordgo.Channel) ChannelMeta {
	meta := ChannelMeta{
		ID:       ch.ID,
		ParentID: ch.ParentID,
		GuildID:  ch.GuildID,
		Kind:     kindOf(ch.Type),
		Type:     int(ch.Type),
	}
	if ch.ThreadMetadata != nil {
		meta.Archived = ch.ThreadMetadata.Archived
	}
	return meta
}

func rawMessage(m *discordgo.Message) RawMessage {
	msg := RawMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorUsername = m.Author.Username
		msg.AuthorAvatarKey = m.Author.Avatar
	}
	return msg
}
