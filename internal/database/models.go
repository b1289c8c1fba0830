package database

import (
	"database/sql"
	"time"
)

// Attachment type identifiers, matching Telegram content types. The
// new_members type covers service messages announcing joined users.
const (
	AttachmentPhoto      = "photo"
	AttachmentSticker    = "sticker"
	AttachmentVoice      = "voice"
	AttachmentVideoNote  = "video_note"
	AttachmentVideo      = "video"
	AttachmentAnimation  = "animation"
	AttachmentDocument   = "document"
	AttachmentPoll       = "poll"
	AttachmentLocation   = "location"
	AttachmentNewMembers = "new_members"
)

// Attachment describes the non-text element of a message, if any. It is
// stored as a JSON column on the message row. Description is populated
// best-effort by the description pipeline before the message is persisted;
// its absence is valid.
//
// FileID, FileUniqueID, ThumbnailFileID and Animated carry the Telegram file
// references the description pipeline needs; they are meaningless for types
// that never reach a model call.
type Attachment struct {
	Type string `json:"type"`

	FileID          string `json:"file_id,omitempty"`
	FileUniqueID    string `json:"file_unique_id,omitempty"`
	ThumbnailFileID string `json:"thumbnail_file_id,omitempty"`
	Animated        bool   `json:"animated,omitempty"`

	Emoji    string   `json:"emoji,omitempty"`     // sticker
	FileName string   `json:"file_name,omitempty"` // document
	Question string   `json:"question,omitempty"`  // poll
	Options  []string `json:"options,omitempty"`   // poll
	Names    string   `json:"names,omitempty"`     // new_members

	Description  string   `json:"description,omitempty"`
	DescribeCost *float64 `json:"describe_cost,omitempty"`
}

// Message represents one message from a monitored chat. Messages are
// append-only: created once per inbound event, never mutated or deleted.
// (ChatID, MessageID) is unique per the schema.
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID            int64          `db:"chat_id"`
	MessageID         int64          `db:"message_id"`
	SenderID          sql.NullInt64  `db:"sender_id"`
	SenderName        string         `db:"sender_name"`
	Text              string         `db:"text"`
	ReplyToMessageID  sql.NullInt64  `db:"reply_to_message_id"`
	ForwardSenderName sql.NullString `db:"forward_sender_name"`
	Raw               string         `db:"raw"`

	// Attachment is (un)marshalled to the attachment JSON column by the
	// store; nil means the message carried no attachment.
	Attachment     *Attachment    `db:"-"`
	AttachmentJSON sql.NullString `db:"attachment"`
}

// Summary is the append-only audit record of one successful generation.
// It covers the window (FromMessageID, ToMessageID] of its chat. Token and
// cost fields are nil when the provider omitted usage metadata.
type Summary struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID        int64    `db:"chat_id"`
	FromMessageID int64    `db:"from_message_id"`
	ToMessageID   int64    `db:"to_message_id"`
	Model         string   `db:"model"`
	Text          string   `db:"summary_text"`
	InputTokens   *int64   `db:"input_tokens"`
	OutputTokens  *int64   `db:"output_tokens"`
	Cost          *float64 `db:"cost"`
	DurationMS    float64  `db:"duration_ms"`
}
