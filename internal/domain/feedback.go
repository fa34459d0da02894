// Package domain contains core domain types for the proposal chat service.
package domain

import "time"

// FeedbackFlag classifies a user's reaction to an assistant reply.
type FeedbackFlag string

// Flag options offered by the chat widget.
const (
	FlagLike          FeedbackFlag = "like"
	FlagSpam          FeedbackFlag = "spam"
	FlagInappropriate FeedbackFlag = "inappropriate"
	FlagOther         FeedbackFlag = "other"
)

// Flags lists every flag option, in the order the widget shows them.
func Flags() []FeedbackFlag {
	return []FeedbackFlag{FlagLike, FlagSpam, FlagInappropriate, FlagOther}
}

// Valid reports whether the flag is one of the offered options.
func (f FeedbackFlag) Valid() bool {
	switch f {
	case FlagLike, FlagSpam, FlagInappropriate, FlagOther:
		return true
	}
	return false
}

// Feedback is one flagged question/response exchange.
type Feedback struct {
	ID        string
	Question  string
	Response  string
	Flag      FeedbackFlag
	Comment   string
	CreatedAt time.Time
}
