// Package handlers contains the Telegram update handlers for the bot.
package handlers

import (
	"log/slog"

	"github.com/edgard/concisely/internal/config"
	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/media"
	"github.com/edgard/concisely/internal/summary"
	"github.com/edgard/concisely/internal/widelog"
)

// HandlerDeps holds the dependencies required by update handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Describer *media.Describer
	Engine    *summary.Engine
	WideLog   *widelog.Writer
}
