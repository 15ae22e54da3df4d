package threadsync

import (
	"strings"

	"appcompat/api/internal/discord"
)

// MaxMessages is the size of the single page of history returned per call.
const MaxMessages = discord.MaxPageSize

type Author struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    Author `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

// Normalize converts platform messages in their given order, keeping at most
// MaxMessages of them.
func Normalize(raw []discord.RawMessage) []Message {
	if len(raw) > MaxMessages {
		raw = raw[:MaxMessages]
	}
	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		msg := Message{
			ID:        m.ID,
			Content:   EscapeNewlines(m.Content),
			Author:    Author{Username: m.AuthorUsername},
			Timestamp: m.CreatedAt.UnixMilli(),
		}
		if avatar := m.AvatarURL(); avatar != "" {
			msg.Author.AvatarURL = &avatar
		}
		out = append(out, msg)
	}
	return out
}

// EscapeNewlines replaces each newline with the two characters `\n`.
func EscapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

// UnescapeNewlines reverses EscapeNewlines. Text that already contained a
// literal backslash followed by n is indistinguishable from an escaped
// newline and is turned into a newline as well.
func UnescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
