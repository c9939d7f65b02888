package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"workledger/internal/model"
	"workledger/internal/progress"
	"workledger/pkg/logger"
	"workledger/pkg/metrics"
	"workledger/pkg/otel"
)

// attempts per aggregate: the first write plus one retry with fresh reads
const cascadeAttempts = 2

// ProjectPersistedFunc is invoked after the cascade writes a project.
type ProjectPersistedFunc func(ctx context.Context, project *model.Project)

// CascadeController keeps milestone and project progress derived from
// task status.
type CascadeController struct {
	tasks      TaskStore
	milestones MilestoneStore
	projects   ProjectStore
	persisted  ProjectPersistedFunc
	logger     *zap.Logger
	now        func() time.Time
}

func NewCascadeController(
	tasks TaskStore,
	milestones MilestoneStore,
	projects ProjectStore,
	logger *zap.Logger,
) *CascadeController {
	return &CascadeController{
		tasks:      tasks,
		milestones: milestones,
		projects:   projects,
		logger:     logger,
		now:        time.Now,
	}
}

// OnProjectPersisted registers the hook fired after a project progress write.
func (c *CascadeController) OnProjectPersisted(fn ProjectPersistedFunc) {
	c.persisted = fn
}

// OnTaskStatusChanged stamps the task's set-once timestamps and propagates
// its status into milestone and project progress. It returns the task as
// stored, or nil when the task could not be loaded. Failures are logged and
// never reach the caller.
func (c *CascadeController) OnTaskStatusChanged(ctx context.Context, change model.TaskStatusChange) *model.Task {
	log := logger.WithTrace(ctx, c.logger).With(
		zap.Int("task_id", change.TaskID),
		zap.String("from_status", string(change.FromStatus)),
		zap.String("to_status", string(change.ToStatus)),
	)

	at := change.ChangedAt
	if at.IsZero() {
		at = c.now()
	}
	task, err := c.tasks.StampTransition(ctx, change.TaskID, change.ToStatus, at)
	if err != nil {
		log.Warn("Cascade aborted: task could not be loaded", zap.Error(err))
		return nil
	}

	milestone, err := c.RecomputeMilestone(ctx, task.MilestoneID)
	if err != nil {
		log.Warn("Cascade aborted at milestone",
			zap.Int("milestone_id", task.MilestoneID),
			zap.Error(err),
		)
		return task
	}

	// a failure here leaves the milestone write in place
	if _, err := c.RecomputeProject(ctx, milestone.ProjectID); err != nil {
		log.Warn("Cascade aborted at project",
			zap.Int("milestone_id", milestone.ID),
			zap.Int("project_id", milestone.ProjectID),
			zap.Error(err),
		)
	}
	return task
}

// RecomputeMilestone re-derives one milestone's progress from its tasks.
func (c *CascadeController) RecomputeMilestone(ctx context.Context, milestoneID int) (milestone *model.Milestone, err error) {
	ctx, span := otel.HookSpan(ctx, "recompute_milestone", attribute.Int("milestone_id", milestoneID))
	defer func() { otel.EndSpan(span, err) }()

	for attempt := 1; attempt <= cascadeAttempts; attempt++ {
		m, err := c.milestones.GetMilestone(ctx, milestoneID)
		if err != nil {
			metrics.IncrementCascade("milestone", outcomeOf(err))
			return nil, err
		}
		tasks, err := c.tasks.ListByMilestone(ctx, milestoneID)
		if err != nil {
			metrics.IncrementCascade("milestone", outcomeOf(err))
			return nil, err
		}

		next := progress.Milestone(tasks)
		if next == m.Progress {
			return m, nil
		}

		err = c.milestones.UpdateProgress(ctx, m.ID, next, m.Version)
		if err == nil {
			metrics.IncrementCascade("milestone", "updated")
			c.logger.Debug("Milestone progress updated",
				zap.Int("milestone_id", m.ID),
				zap.Int("from", m.Progress),
				zap.Int("to", next),
			)
			m.Progress = next
			m.Version++
			return m, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			metrics.IncrementCascade("milestone", outcomeOf(err))
			return nil, err
		}
		metrics.IncrementCascade("milestone", "retried")
	}

	metrics.IncrementCascade("milestone", "conflict")
	return nil, model.ErrVersionConflict
}

// RecomputeProject re-derives a project's progress from its milestones and,
// when the value changed, fires the project-persisted hook.
func (c *CascadeController) RecomputeProject(ctx context.Context, projectID int) (project *model.Project, err error) {
	ctx, span := otel.HookSpan(ctx, "recompute_project", attribute.Int("project_id", projectID))
	defer func() { otel.EndSpan(span, err) }()

	for attempt := 1; attempt <= cascadeAttempts; attempt++ {
		p, err := c.projects.GetProject(ctx, projectID)
		if err != nil {
			metrics.IncrementCascade("project", outcomeOf(err))
			return nil, err
		}
		milestones, err := c.milestones.ListByProject(ctx, projectID)
		if err != nil {
			metrics.IncrementCascade("project", outcomeOf(err))
			return nil, err
		}

		next := progress.Project(milestones)
		if next == p.Progress {
			return p, nil
		}

		saved, err := c.projects.UpdateProgress(ctx, p.ID, next, p.Version)
		if err == nil {
			metrics.IncrementCascade("project", "updated")
			c.logger.Debug("Project progress updated",
				zap.Int("project_id", p.ID),
				zap.Int("from", p.Progress),
				zap.Int("to", next),
			)
			if c.persisted != nil {
				c.persisted(ctx, saved)
			}
			return saved, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			metrics.IncrementCascade("project", outcomeOf(err))
			return nil, err
		}
		metrics.IncrementCascade("project", "retried")
	}

	metrics.IncrementCascade("project", "conflict")
	return nil, model.ErrVersionConflict
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrVersionConflict):
		return "conflict"
	}
	return "error"
}
