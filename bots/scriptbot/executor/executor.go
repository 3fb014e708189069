// Package executor defines how registered scripts would be started.
package executor

import (
	"context"
	"log/slog"

	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
	"github.com/m3rciful/scriptbot/core/logger"
)

// Request describes a registered script to run.
type Request struct {
	BotID    int64
	UserID   int64
	Language models.Language
	FilePath string
	Token    string
}

// Result reports the outcome of a run request.
type Result struct {
	Started bool
}

// Executor starts registered scripts.
type Executor interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Stub accepts every request without running anything.
type Stub struct{}

// Run logs the request and reports success.
func (Stub) Run(ctx context.Context, req Request) (*Result, error) {
	logger.Info(ctx, "executor", "run.accepted",
		slog.Int64("bot_id", req.BotID),
		slog.String("language", string(req.Language)),
		slog.String("file", req.FilePath),
	)
	return &Result{Started: true}, nil
}
