package models

import "time"

// Turn roles. Exactly two: no system-authored turns are persisted.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one immutable message in a (user, character) transcript.
//
// Seq is a per-(user, character) monotonic sequence number and is the
// ordering key; CreatedAt is metadata only. Model turns carry ReplyTo, the
// ID of the user turn they answer, so the deletion cascade is an exact
// lookup rather than a positional scan.
type Turn struct {
	ID          string
	UserID      string
	CharacterID string
	Role        string
	Content     string
	Seq         int64
	ReplyTo     string
	CreatedAt   time.Time
}
