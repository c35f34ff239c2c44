package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type UpdateKind string

const (
	UpdateMessage     UpdateKind = "message"
	UpdateChannelPost UpdateKind = "channel_post"
	UpdateCallback    UpdateKind = "callback"
	UpdateJoinRequest UpdateKind = "join_request"
)

type Update struct {
	Kind        UpdateKind
	Message     *Message
	Callback    *Callback
	JoinRequest *JoinRequest
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromName     string
	FromUsername string
	Text         string
	IsGroup      bool

	// Media is set for channel posts / messages carrying a file.
	Media *MediaInfo
	// ReplyToID is the id of the message this one replies to (0 if none).
	ReplyToID int
}

// MediaInfo carries just enough file metadata for indexing.
type MediaInfo struct {
	FileName string
	FileSize int64
}

type Callback struct {
	ID        string
	FromID    int64
	FromName  string
	ChatID    int64
	MessageID int
	Data      string
}

// JoinRequest is a pending request to join a channel the bot administers.
type JoinRequest struct {
	ChatID   int64
	ChatName string
	UserID   int64
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// ChatInfo is the subset of channel metadata the gate UI needs.
type ChatInfo struct {
	ID         int64
	Title      string
	InviteLink string
}

// InlineButton is one button of an inline keyboard. Exactly one of URL,
// Data or SwitchInline should be set.
type InlineButton struct {
	Text         string
	URL          string
	Data         string
	SwitchInline bool
}

type InlineKeyboard [][]InlineButton

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Protect        bool
	Markup         InlineKeyboard
}

// ThrottledError reports a provider-side rate limit with a mandatory wait.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled: retry after %s", e.RetryAfter)
}

// AsThrottled extracts a throttle signal from an adapter error.
func AsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ErrNotParticipant is returned by MemberOf when the user never joined.
var ErrNotParticipant = errors.New("not a participant")

// ErrBlocked marks a recipient that blocked the bot or deleted their
// account. Senders can drop such users from the audience.
var ErrBlocked = errors.New("recipient unavailable")

// Adapter is the chat platform client consumed by the pipeline.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, png []byte, caption string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	EditMarkup(ctx context.Context, ref MessageRef, markup InlineKeyboard) error
	Delete(ctx context.Context, ref MessageRef) error

	// Copy re-sends src into the target chat without a forward header.
	// opt.Protect applies platform copy protection.
	Copy(ctx context.Context, to ChatTarget, src MessageRef, opt *SendOptions) (MessageRef, error)

	// MemberOf reports the membership status of user in chat.
	// Returns ErrNotParticipant (possibly wrapped) when the user is unknown
	// to the chat.
	MemberOf(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	ChatInfo(ctx context.Context, chatID int64) (ChatInfo, error)

	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// Username returns the bot's own username used to build deep links.
	Username() string
}

type MemberStatus string

const (
	StatusMember        MemberStatus = "member"
	StatusAdministrator MemberStatus = "administrator"
	StatusCreator       MemberStatus = "creator"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Joined reports whether the status counts as present in the channel.
// Restricted users are still members.
func (s MemberStatus) Joined() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator, StatusRestricted:
		return true
	}
	return false
}
