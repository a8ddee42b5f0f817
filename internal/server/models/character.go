package models

import "time"

// Character is an AI persona owned by a single user. BasePrompt and
// GreetingText seed the model context on every turn; ImageKey points into
// the blob store and may be empty.
type Character struct {
	ID           string
	UserID       string
	Name         string
	Description  string
	BasePrompt   string
	GreetingText string
	ImageKey     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
