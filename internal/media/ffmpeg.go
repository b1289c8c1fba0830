package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ConvertOGGToMP3 transcodes Telegram voice audio (OGG/Opus) to MP3 using an
// ffmpeg subprocess with stdin/stdout pipes. The Gemini API does not accept
// the OGG container, so this is a required adapter step for voice messages.
func ConvertOGGToMP3(ctx context.Context, audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio data is empty")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "mp3",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg transcode failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}

	return stdout.Bytes(), nil
}
