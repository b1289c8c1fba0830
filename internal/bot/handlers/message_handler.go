package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/widelog"
)

// NewMessageHandler returns the default handler: it ingests every message
// from a monitored chat, enriching attachments with descriptions, persisting
// the message, and evaluating the summarization trigger. One wide-log record
// is appended per processed message.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil {
			return
		}

		chatID := msg.Chat.ID
		if _, monitored := deps.Config.IntervalFor(chatID); !monitored {
			return
		}

		log := deps.Logger.With("chat_id", chatID, "message_id", msg.ID)
		start := time.Now()

		timings := map[string]float64{}
		record := widelog.Record{
			"request_id": fmt.Sprintf("%d:%d", chatID, msg.ID),
			"timings_ms": timings,
		}

		raw, err := json.Marshal(msg)
		if err != nil {
			log.WarnContext(ctx, "Failed to marshal raw message", "error", err)
			raw = []byte("{}")
		}
		record["message"] = json.RawMessage(raw)

		att := ExtractAttachment(msg)
		if att != nil {
			record["attachment_type"] = att.Type

			describeStart := time.Now()
			described := deps.Describer.Describe(ctx, att)
			timings["describe_attachment"] = elapsedMS(describeStart)

			if described {
				record["attachment_description"] = att.Description
				if att.DescribeCost != nil {
					record["describe_cost"] = *att.DescribeCost
				}
			}
		}

		stored := &database.Message{
			ChatID:            chatID,
			MessageID:         int64(msg.ID),
			SenderName:        SenderName(msg),
			Text:              MessageText(msg),
			ForwardSenderName: toNullString(ForwardSenderName(msg)),
			Raw:               string(raw),
			Attachment:        att,
		}
		if msg.From != nil {
			stored.SenderID = sql.NullInt64{Int64: msg.From.ID, Valid: true}
		}
		if msg.ReplyToMessage != nil {
			stored.ReplyToMessageID = sql.NullInt64{Int64: int64(msg.ReplyToMessage.ID), Valid: true}
		}

		saveStart := time.Now()
		if err := deps.Store.SaveMessage(ctx, stored); err != nil {
			log.ErrorContext(ctx, "Failed to save message", "error", err)
			record["error"] = err.Error()
			timings["total"] = elapsedMS(start)
			deps.WideLog.Append(ctx, record)
			return
		}
		timings["save_message"] = elapsedMS(saveStart)

		record["summary"] = deps.Engine.OnMessage(ctx, chatID, int64(msg.ID))

		timings["total"] = elapsedMS(start)
		deps.WideLog.Append(ctx, record)
	}
}

func elapsedMS(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000.0
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
