package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
	"github.com/capitalize-ai/scheduling-agent/pkg/metrics"
)

// History is the per-user conversation log.
type History interface {
	Append(ctx context.Context, userID string, role model.Role, content string) error
	RecentWindow(ctx context.Context, userID string, limit int) ([]model.ChatTurn, error)
}

// bestEffortHistory never fails the chat turn. Failures are logged and
// counted instead.
type bestEffortHistory struct {
	inner History
	log   *logger.Logger
}

func (h bestEffortHistory) append(ctx context.Context, userID string, role model.Role, content string) {
	if h.inner == nil {
		return
	}
	if err := h.inner.Append(ctx, userID, role, content); err != nil {
		metrics.RecordHistoryFailure("append")
		h.log.Warn("could not save chat turn",
			zap.String("user_id", userID),
			zap.String("role", string(role)),
			zap.Error(err),
		)
	}
}

func (h bestEffortHistory) recent(ctx context.Context, userID string, limit int) []model.ChatTurn {
	if h.inner == nil {
		return nil
	}
	turns, err := h.inner.RecentWindow(ctx, userID, limit)
	if err != nil {
		metrics.RecordHistoryFailure("read")
		h.log.Warn("could not load chat history", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return turns
}
