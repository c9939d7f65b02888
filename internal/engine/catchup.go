package engine

import (
	"context"
	"fmt"
)

// The hooks swallow failures, so a side effect can be missed when storage
// or the admin directory is briefly unavailable. The methods below redo one
// side effect by id and report errors. All of them are idempotent: repeated
// calls write nothing once the effect exists.

// RecordAdvance books the advance transaction of a project if it is missing.
func (e *Engine) RecordAdvance(ctx context.Context, projectID int) (bool, error) {
	project, err := e.projects.GetProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load project %d: %w", projectID, err)
	}
	return e.recorder.Record(ctx, project)
}

// SettleProject moves any pending incentives still held by a settled project.
func (e *Engine) SettleProject(ctx context.Context, projectID int) (int, error) {
	project, err := e.projects.GetProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("load project %d: %w", projectID, err)
	}
	return e.settlement.Settle(ctx, project)
}

// ScoreTask awards the points a completed task still owes its assignees.
// Tasks that are no longer completed are left alone.
func (e *Engine) ScoreTask(ctx context.Context, taskID int) (int, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("load task %d: %w", taskID, err)
	}
	if !task.IsCompleted() {
		return 0, nil
	}
	return e.score(ctx, task)
}
