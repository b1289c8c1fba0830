package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record. (chat_id, message_id) is
	// unique; re-inserting the same pair fails.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessagesBetween retrieves messages of a chat in the window
	// (fromID, toID], ordered by message_id ascending.
	GetMessagesBetween(ctx context.Context, chatID, fromID, toID int64) ([]*Message, error)

	// GetRecentMessages retrieves the last 'limit' messages of a chat in
	// ascending message_id order.
	GetRecentMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error)

	// GetLastSummaryMessageID returns the chat watermark, or found=false
	// when the chat has no state row yet.
	GetLastSummaryMessageID(ctx context.Context, chatID int64) (id int64, found bool, err error)

	// SetLastSummaryMessageID creates or updates the chat watermark.
	SetLastSummaryMessageID(ctx context.Context, chatID, messageID int64) error

	// GetStickerDescription returns a cached sticker description, or
	// found=false on a cache miss.
	GetStickerDescription(ctx context.Context, fileUniqueID string) (text string, found bool, err error)

	// SaveStickerDescription caches a sticker description. The write is
	// idempotent: re-saving an already cached file_unique_id is a no-op.
	SaveStickerDescription(ctx context.Context, fileUniqueID, text string) error

	// SaveSummary appends a summary audit record.
	SaveSummary(ctx context.Context, summary *Summary) error

	// RunMaintenance performs database maintenance (VACUUM, ANALYZE).
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage inserts a new message record.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return errors.New("cannot save nil message")
	}
	if message.ChatID == 0 {
		return errors.New("message must have a non-zero chat_id")
	}
	if message.MessageID <= 0 {
		return errors.New("message must have a positive message_id")
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	if message.Attachment != nil {
		data, err := json.Marshal(message.Attachment)
		if err != nil {
			return fmt.Errorf("failed to marshal attachment for message %d in chat %d: %w",
				message.MessageID, message.ChatID, err)
		}
		message.AttachmentJSON = sql.NullString{String: string(data), Valid: true}
	} else {
		message.AttachmentJSON = sql.NullString{}
	}

	query := `
        INSERT INTO messages (chat_id, message_id, sender_id, sender_name, text,
                              reply_to_message_id, forward_sender_name, attachment, raw, created_at)
        VALUES (:chat_id, :message_id, :sender_id, :sender_name, :text,
                :reply_to_message_id, :forward_sender_name, :attachment, :raw, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return fmt.Errorf("failed to save message (chat %d, id %d): %w",
			message.ChatID, message.MessageID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		message.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"chat_id", message.ChatID, "message_id", message.MessageID)
	return nil
}

// GetMessagesBetween retrieves messages in the window (fromID, toID].
func (s *sqlxStore) GetMessagesBetween(ctx context.Context, chatID, fromID, toID int64) ([]*Message, error) {
	if chatID == 0 {
		return nil, errors.New("chat_id cannot be zero")
	}

	var messages []*Message
	query := `
        SELECT id, chat_id, message_id, sender_id, sender_name, text,
               reply_to_message_id, forward_sender_name, attachment, raw, created_at
        FROM messages
        WHERE chat_id = ? AND message_id > ? AND message_id <= ?
        ORDER BY message_id ASC;
    `

	if err := s.db.SelectContext(ctx, &messages, query, chatID, fromID, toID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting messages for window",
			"chat_id", chatID, "from_id", fromID, "to_id", toID, "error", err)
		return nil, fmt.Errorf("failed to get messages for chat %d window (%d, %d]: %w",
			chatID, fromID, toID, err)
	}

	if err := s.unmarshalAttachments(ctx, messages); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Fetched message window",
		"chat_id", chatID, "from_id", fromID, "to_id", toID, "count", len(messages))
	return messages, nil
}

// GetRecentMessages retrieves the last 'limit' messages in ascending order.
func (s *sqlxStore) GetRecentMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error) {
	if chatID == 0 {
		return nil, errors.New("chat_id cannot be zero")
	}
	if limit <= 0 {
		limit = 100
	}

	var messages []*Message
	query := `
        SELECT id, chat_id, message_id, sender_id, sender_name, text,
               reply_to_message_id, forward_sender_name, attachment, raw, created_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY message_id DESC
        LIMIT ?;
    `

	if err := s.db.SelectContext(ctx, &messages, query, chatID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent messages for chat %d: %w", chatID, err)
	}

	// Query returns newest first; restore chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	if err := s.unmarshalAttachments(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *sqlxStore) unmarshalAttachments(ctx context.Context, messages []*Message) error {
	for _, m := range messages {
		if !m.AttachmentJSON.Valid || m.AttachmentJSON.String == "" {
			continue
		}
		att := &Attachment{}
		if err := json.Unmarshal([]byte(m.AttachmentJSON.String), att); err != nil {
			// A corrupt attachment column must not make the window
			// unreadable; the message renders without its attachment.
			s.logger.WarnContext(ctx, "Failed to unmarshal stored attachment, skipping",
				"chat_id", m.ChatID, "message_id", m.MessageID, "error", err)
			continue
		}
		m.Attachment = att
	}
	return nil
}

// GetLastSummaryMessageID returns the chat watermark.
func (s *sqlxStore) GetLastSummaryMessageID(ctx context.Context, chatID int64) (int64, bool, error) {
	var id int64
	query := `SELECT last_summary_message_id FROM chat_state WHERE chat_id = ?;`

	err := s.db.GetContext(ctx, &id, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reading chat watermark", "chat_id", chatID, "error", err)
		return 0, false, fmt.Errorf("failed to read watermark for chat %d: %w", chatID, err)
	}
	return id, true, nil
}

// SetLastSummaryMessageID creates or updates the chat watermark.
func (s *sqlxStore) SetLastSummaryMessageID(ctx context.Context, chatID, messageID int64) error {
	query := `
        INSERT INTO chat_state (chat_id, last_summary_message_id, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (chat_id) DO UPDATE SET
            last_summary_message_id = excluded.last_summary_message_id,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.ExecContext(ctx, query, chatID, messageID, time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error setting chat watermark",
			"chat_id", chatID, "message_id", messageID, "error", err)
		return fmt.Errorf("failed to set watermark for chat %d: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Chat watermark updated", "chat_id", chatID, "message_id", messageID)
	return nil
}

// GetStickerDescription returns a cached sticker description.
func (s *sqlxStore) GetStickerDescription(ctx context.Context, fileUniqueID string) (string, bool, error) {
	if fileUniqueID == "" {
		return "", false, errors.New("file_unique_id cannot be empty")
	}

	var text string
	query := `SELECT description FROM sticker_descriptions WHERE file_unique_id = ?;`

	err := s.db.GetContext(ctx, &text, query, fileUniqueID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read sticker description %q: %w", fileUniqueID, err)
	}
	return text, true, nil
}

// SaveStickerDescription caches a sticker description, idempotently.
func (s *sqlxStore) SaveStickerDescription(ctx context.Context, fileUniqueID, text string) error {
	if fileUniqueID == "" {
		return errors.New("file_unique_id cannot be empty")
	}

	query := `
        INSERT INTO sticker_descriptions (file_unique_id, description, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT (file_unique_id) DO NOTHING;
    `

	if _, err := s.db.ExecContext(ctx, query, fileUniqueID, text, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save sticker description %q: %w", fileUniqueID, err)
	}

	s.logger.DebugContext(ctx, "Sticker description cached", "file_unique_id", fileUniqueID)
	return nil
}

// SaveSummary appends a summary audit record.
func (s *sqlxStore) SaveSummary(ctx context.Context, summary *Summary) error {
	if summary == nil {
		return errors.New("cannot save nil summary")
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO summaries (chat_id, from_message_id, to_message_id, model, summary_text,
                               input_tokens, output_tokens, cost, duration_ms, created_at)
        VALUES (:chat_id, :from_message_id, :to_message_id, :model, :summary_text,
                :input_tokens, :output_tokens, :cost, :duration_ms, :created_at);
    `

	if _, err := s.db.NamedExecContext(ctx, query, summary); err != nil {
		s.logger.ErrorContext(ctx, "Error saving summary record",
			"chat_id", summary.ChatID, "to_message_id", summary.ToMessageID, "error", err)
		return fmt.Errorf("failed to save summary for chat %d: %w", summary.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Summary record saved",
		"chat_id", summary.ChatID,
		"from_message_id", summary.FromMessageID,
		"to_message_id", summary.ToMessageID,
		"model", summary.Model)
	return nil
}

// RunMaintenance executes VACUUM and ANALYZE on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		return fmt.Errorf("failed to run ANALYZE: %w", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}
