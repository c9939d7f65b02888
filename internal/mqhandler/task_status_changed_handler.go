package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	mqcontracts "workledger/contracts/mq"
	"workledger/internal/model"
	"workledger/pkg/logger"
)

const taskStatusChangedHandlerName = "task_status_changed"

type TaskHooks interface {
	OnTaskStatusChanged(ctx context.Context, change model.TaskStatusChange)
}

type TaskStatusChangedHandler struct {
	hooks   TaskHooks
	deduper Deduper
	logger  *zap.Logger
}

func NewTaskStatusChangedHandler(hooks TaskHooks, deduper Deduper, logger *zap.Logger) *TaskStatusChangedHandler {
	if deduper == nil {
		deduper = noDedup{}
	}
	return &TaskStatusChangedHandler{
		hooks:   hooks,
		deduper: deduper,
		logger:  logger,
	}
}

func (h *TaskStatusChangedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.TaskStatusChangedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal TaskStatusChangedPayload", zap.Error(err))
		return err
	}

	change, err := toStatusChange(p)
	if err != nil {
		h.logger.Warn("Dropping invalid task.status_changed event", zap.Error(err))
		return err
	}

	log := logger.WithTrace(ctx, h.logger)
	log.Info("Handling task.status_changed event",
		zap.Int("task_id", change.TaskID),
		zap.String("from_status", string(change.FromStatus)),
		zap.String("to_status", string(change.ToStatus)),
	)

	key := p.EventID
	if key == "" {
		key = strconv.Itoa(p.TaskID) + ":" + string(change.ToStatus) + ":" + strconv.FormatInt(p.ChangedAt.UnixNano(), 10)
	}
	if !h.deduper.AcquireOnce(ctx, taskStatusChangedHandlerName, key) {
		return nil
	}

	// the hook logs its own failures and is safe to run again
	h.hooks.OnTaskStatusChanged(ctx, change)
	return nil
}

func toStatusChange(p mqcontracts.TaskStatusChangedPayload) (model.TaskStatusChange, error) {
	if p.TaskID <= 0 {
		return model.TaskStatusChange{}, fmt.Errorf("%w: task_id must be positive", model.ErrInvalid)
	}
	to := model.TaskStatus(p.ToStatus)
	if !to.Valid() {
		return model.TaskStatusChange{}, fmt.Errorf("%w: unknown to_status %q", model.ErrInvalid, p.ToStatus)
	}
	from := model.TaskStatus(p.FromStatus)
	if p.FromStatus != "" && !from.Valid() {
		return model.TaskStatusChange{}, fmt.Errorf("%w: unknown from_status %q", model.ErrInvalid, p.FromStatus)
	}
	return model.TaskStatusChange{
		TaskID:     p.TaskID,
		FromStatus: from,
		ToStatus:   to,
		ChangedAt:  p.ChangedAt,
	}, nil
}
