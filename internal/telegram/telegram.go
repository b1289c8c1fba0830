// Package telegram wraps the go-telegram/bot client: bot construction, media
// download, and summary delivery.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/concisely/internal/config"
	"github.com/edgard/concisely/internal/openrouter"
	"github.com/edgard/concisely/internal/text"
)

const (
	fileDownloadTimeout = 30 * time.Second
	sendMessageTimeout  = 10 * time.Second
)

// NewTelegramBot creates a new Telegram bot instance using the
// go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", token[:8]+"...")
	return b, nil
}

// Gateway bundles the outbound Telegram operations the rest of the bot
// consumes: media download for the description pipeline and summary delivery
// for the trigger engine.
type Gateway struct {
	bot   *bot.Bot
	token string
	log   *slog.Logger
	cfg   config.SummaryConfig
}

// NewGateway creates a Gateway on an already constructed bot instance.
func NewGateway(b *bot.Bot, token string, cfg config.SummaryConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		bot:   b,
		token: token,
		log:   logger.With("component", "telegram_gateway"),
		cfg:   cfg,
	}
}

// Download retrieves file data from Telegram's file API and detects its MIME
// type.
func (g *Gateway) Download(ctx context.Context, fileID string) (data []byte, mimeType string, err error) {
	if fileID == "" {
		return nil, "", fmt.Errorf("empty fileID provided")
	}
	if ctx.Err() != nil {
		return nil, "", fmt.Errorf("context cancelled before file download: %w", ctx.Err())
	}

	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	fileObj, err := g.bot.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file info from Telegram: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, "", fmt.Errorf("empty file path returned from Telegram for file ID %s", fileID)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", g.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("file download failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			g.log.Warn("Failed to close download response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("downloaded file is empty")
	}

	mimeType = http.DetectContentType(data)
	return data, mimeType, nil
}

// SendSummary formats and delivers a finished summary: the configured tag,
// the repaired and length-capped summary body, and the short model name as a
// footer. HTML parse mode is tried first; if Telegram rejects the markup the
// same content is re-sent as plain text.
func (g *Gateway) SendSummary(ctx context.Context, chatID int64, summary, model string) error {
	summary = text.Truncate(summary, g.cfg.MaxLength)
	summary = text.FixHTML(summary)

	full := fmt.Sprintf("%s\n%s\n\n%s", g.cfg.Tag, summary, openrouter.ShortModelName(model))

	htmlCtx, cancelHTML := context.WithTimeout(ctx, sendMessageTimeout)
	_, err := g.bot.SendMessage(htmlCtx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      full,
		ParseMode: models.ParseModeHTML,
	})
	cancelHTML()
	if err == nil {
		return nil
	}

	g.log.WarnContext(ctx, "HTML summary send failed, retrying as plain text",
		"chat_id", chatID, "error", err)

	// The HTML attempt may have consumed its whole deadline; the plain
	// retry gets its own.
	retryCtx, cancelRetry := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancelRetry()

	_, err = g.bot.SendMessage(retryCtx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   full,
	})
	if err != nil {
		return fmt.Errorf("failed to send summary to chat %d: %w", chatID, err)
	}
	return nil
}
