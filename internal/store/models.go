package store

import "time"

// Post is the slice of a content record the synchronizer needs. ThreadID is
// nil until a discussion thread has been provisioned for it.
type Post struct {
	ID          string
	Title       string
	Description string
	ThreadID    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BoundThreadID returns the bound thread ID or "" when none is bound.
func (p Post) BoundThreadID() string {
	if p.ThreadID == nil {
		return ""
	}
	return *p.ThreadID
}
