// Package main contains promptdump, a CLI utility that renders the
// summarization prompt for a message window straight from a live database.
// Useful for inspecting what a model would have seen for a given range.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/edgard/concisely/internal/config"
	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/logger"
	"github.com/edgard/concisely/internal/summary"

	_ "modernc.org/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	chatID := flag.Int64("chat-id", 0, "Chat ID to render messages from (required)")
	fromID := flag.Int64("from-id", 0, "Start of the message window, exclusive")
	toID := flag.Int64("to-id", 0, "End of the message window, inclusive")
	limit := flag.Int("limit", 100, "Number of most recent messages when no window is given")
	output := flag.String("output", "", "Write the prompt to this file instead of stdout")
	full := flag.Bool("full", true, "Include the instruction block, not just the rendered messages")
	flag.Parse()

	if *chatID == 0 {
		fmt.Fprintln(os.Stderr, "promptdump: -chat-id is required")
		flag.Usage()
		return 2
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger("warn", false)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	ctx := context.Background()

	var messages []*database.Message
	if *fromID != 0 && *toID != 0 {
		messages, err = store.GetMessagesBetween(ctx, *chatID, *fromID, *toID)
	} else {
		messages, err = store.GetRecentMessages(ctx, *chatID, *limit)
	}
	if err != nil {
		log.Error("Failed to fetch messages", "chat_id", *chatID, "error", err)
		return 1
	}
	if len(messages) == 0 {
		fmt.Fprintf(os.Stderr, "promptdump: no messages found for chat %d\n", *chatID)
		return 1
	}
	fmt.Fprintf(os.Stderr, "promptdump: rendering %d messages from chat %d\n", len(messages), *chatID)

	var prompt string
	if *full {
		prompt = summary.RenderPrompt(messages)
	} else {
		prompt = summary.RenderMessages(messages)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(prompt), 0o644); err != nil {
			log.Error("Failed to write output file", "path", *output, "error", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "promptdump: prompt written to %s\n", *output)
		return 0
	}

	fmt.Println(prompt)
	return 0
}
