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

const projectSavedHandlerName = "project_saved"

type ProjectHooks interface {
	OnProjectPersisted(ctx context.Context, project *model.Project)
	OnProjectCreated(ctx context.Context, project *model.Project)
}

type ProjectLoader interface {
	GetProject(ctx context.Context, id int) (*model.Project, error)
}

// ProjectSavedHandler reloads the saved project so hooks always see the
// committed row rather than the event snapshot.
type ProjectSavedHandler struct {
	projects ProjectLoader
	hooks    ProjectHooks
	deduper  Deduper
	logger   *zap.Logger
}

func NewProjectSavedHandler(projects ProjectLoader, hooks ProjectHooks, deduper Deduper, logger *zap.Logger) *ProjectSavedHandler {
	if deduper == nil {
		deduper = noDedup{}
	}
	return &ProjectSavedHandler{
		projects: projects,
		hooks:    hooks,
		deduper:  deduper,
		logger:   logger,
	}
}

func (h *ProjectSavedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ProjectSavedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProjectSavedPayload", zap.Error(err))
		return err
	}
	if p.ProjectID <= 0 {
		return fmt.Errorf("%w: project_id must be positive", model.ErrInvalid)
	}

	log := logger.WithTrace(ctx, h.logger).With(zap.Int("project_id", p.ProjectID))
	log.Info("Handling project.saved event", zap.Bool("created", p.Created))

	key := p.EventID
	if key == "" {
		key = strconv.Itoa(p.ProjectID) + ":" + strconv.FormatBool(p.Created)
	}
	if !h.deduper.AcquireOnce(ctx, projectSavedHandlerName, key) {
		return nil
	}

	project, err := h.projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		// let a redelivery try again
		h.deduper.Release(ctx, projectSavedHandlerName, key)
		log.Error("Failed to load saved project", zap.Error(err))
		return err
	}

	if p.Created {
		h.hooks.OnProjectCreated(ctx, project)
	} else {
		h.hooks.OnProjectPersisted(ctx, project)
	}
	return nil
}
