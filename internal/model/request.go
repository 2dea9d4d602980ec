package model

import (
	"fmt"
	"strings"
	"time"
)

// MessageRef identifies a chat message that can be edited in place.
// The zero value means the message does not exist (yet).
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero returns true if the reference points to no message
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

// String returns "chat:message", used as a log and map key
func (r MessageRef) String() string {
	return fmt.Sprintf("%d:%d", r.ChatID, r.MessageID)
}

// PendingRequest is a URL waiting for the requester's confirmation
type PendingRequest struct {
	Token           string     // single-use key of the confirmation buttons
	URL             string     // target media URL, immutable once stored
	ChatID          int64      // conversation the URL was posted in
	RequesterID     int64      // only this user may confirm
	ConfirmationRef MessageRef // prompt with the confirm/cancel buttons
	ProgressRef     MessageRef // set on the removed copy at confirmation, zero before
	CreatedAt       time.Time
}

// Action is the button a user pressed on a confirmation prompt
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// IsValid returns true for known actions
func (a Action) IsValid() bool {
	return a == ActionConfirm || a == ActionCancel
}

// CallbackDataSeparator separates the action from the token in button data
const CallbackDataSeparator = ":"

// CallbackData encodes an action and a token into inline button data
func CallbackData(action Action, token string) string {
	return string(action) + CallbackDataSeparator + token
}

// ParseCallbackData splits inline button data back into action and token
func ParseCallbackData(data string) (Action, string, error) {
	action, token, ok := strings.Cut(data, CallbackDataSeparator)
	if !ok || token == "" {
		return "", "", fmt.Errorf("malformed callback data: %q", data)
	}
	a := Action(action)
	if !a.IsValid() {
		return "", "", fmt.Errorf("unknown callback action: %q", action)
	}
	return a, token, nil
}

// Button is an inline action rendered under a chat message
type Button struct {
	Text string
	Data string
}
