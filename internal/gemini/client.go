// Package gemini implements the media description client on Google's Gemini
// API. It turns photos, stickers, video notes, and voice messages into short
// textual descriptions for the summarization prompt. Description models are
// fixed per modality, unlike the randomized summarization model choice.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/edgard/concisely/internal/config"
)

// DescribeResult carries one media description. Cost is nil when the
// provider reports no cost metadata (the Gemini API reports token counts
// only, so it currently always is).
type DescribeResult struct {
	Text string
	Cost *float64
}

// Client defines the interface for media description calls.
type Client interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (*DescribeResult, error)
	DescribeSticker(ctx context.Context, data []byte, mimeType string) (*DescribeResult, error)
	DescribeVideoNote(ctx context.Context, data []byte, mimeType string) (*DescribeResult, error)
	TranscribeVoice(ctx context.Context, mp3Data []byte) (*DescribeResult, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	imageModel  string
	videoModel  string
	voiceModel  string
}

// NewClient creates a new Gemini media description client.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully",
		"image_model", cfg.ImageModel,
		"video_model", cfg.VideoModel,
		"voice_model", cfg.VoiceModel)

	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		imageModel:  cfg.ImageModel,
		videoModel:  cfg.VideoModel,
		voiceModel:  cfg.VoiceModel,
	}, nil
}

// DescribeImage describes a photo.
func (c *sdkClient) DescribeImage(ctx context.Context, data []byte, mimeType string) (*DescribeResult, error) {
	return c.generate(ctx, c.imageModel, DescribeImageInstruction, data, mimeType)
}

// DescribeSticker describes a sticker image. Animated and video stickers
// must be reduced to a still thumbnail by the caller first.
func (c *sdkClient) DescribeSticker(ctx context.Context, data []byte, mimeType string) (*DescribeResult, error) {
	return c.generate(ctx, c.imageModel, DescribeStickerInstruction, data, mimeType)
}

// DescribeVideoNote describes a round video message.
func (c *sdkClient) DescribeVideoNote(ctx context.Context, data []byte, mimeType string) (*DescribeResult, error) {
	return c.generate(ctx, c.videoModel, DescribeVideoNoteInstruction, data, mimeType)
}

// TranscribeVoice transcribes a voice message. The audio must already be
// transcoded to MP3; the API does not accept Telegram's OGG container.
func (c *sdkClient) TranscribeVoice(ctx context.Context, mp3Data []byte) (*DescribeResult, error) {
	return c.generate(ctx, c.voiceModel, TranscribeVoiceInstruction, mp3Data, "audio/mp3")
}

func (c *sdkClient) generate(ctx context.Context, modelName, instruction string, data []byte, mimeType string) (*DescribeResult, error) {
	if len(data) == 0 {
		return nil, errors.New("media data is empty")
	}
	if mimeType == "" {
		return nil, errors.New("media MIME type is required")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	c.log.DebugContext(ctx, "Requesting media description",
		"model", modelName, "mime_type", mimeType, "media_bytes", len(data))

	resp, err := c.genaiClient.Models.GenerateContent(ctx, modelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	text, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, err
	}

	return &DescribeResult{Text: text}, nil
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("description blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("description returned no content, finish reason: %s", finishReason)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("description returned empty text")
	}
	return text, nil
}
