package store

import "time"

// State is the sync state of one favorite key.
type State string

const (
	Unliked       State = "unliked"
	LikePending   State = "like_pending"
	Liked         State = "liked"
	UnlikePending State = "unlike_pending"
)

// Valid reports whether s is one of the four states.
func (s State) Valid() bool {
	switch s {
	case Unliked, LikePending, Liked, UnlikePending:
		return true
	}
	return false
}

// Pending reports whether s is a transient in-flight state.
func (s State) Pending() bool {
	return s == LikePending || s == UnlikePending
}

// Record is the persisted form of a favorite.
type Record struct {
	Key        string
	ServerCode int64
	State      State
	UpdatedAt  time.Time
}

// HasCode reports whether the record carries a server-assigned code.
func (r Record) HasCode() bool {
	return r.ServerCode > 0
}
