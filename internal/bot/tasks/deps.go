// Package tasks implements the bot's scheduled background tasks.
package tasks

import (
	"log/slog"

	"github.com/edgard/concisely/internal/config"
	"github.com/edgard/concisely/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
