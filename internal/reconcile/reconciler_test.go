package reconcile

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"workledger/internal/model"
)

type stubProjects struct {
	active     []int
	milestones map[int][]int
}

func (s *stubProjects) ListActiveIDs(context.Context) ([]int, error) { return s.active, nil }

func (s *stubProjects) ListMilestoneIDs(_ context.Context, projectID int) ([]int, error) {
	return s.milestones[projectID], nil
}

type stubEmployees []int

func (s stubEmployees) ListActiveIDs(context.Context) ([]int, error) { return s, nil }

type recordingCascade struct {
	milestones []int
	projects   []int
	failOn     int
}

func (c *recordingCascade) RecomputeMilestone(_ context.Context, id int) (*model.Milestone, error) {
	if id == c.failOn {
		return nil, model.ErrVersionConflict
	}
	c.milestones = append(c.milestones, id)
	return &model.Milestone{ID: id}, nil
}

func (c *recordingCascade) RecomputeProject(_ context.Context, id int) (*model.Project, error) {
	c.projects = append(c.projects, id)
	return &model.Project{ID: id}, nil
}

type recordingStats struct{ ids []int }

func (s *recordingStats) RecomputeStatistics(_ context.Context, id int) (model.Statistics, error) {
	s.ids = append(s.ids, id)
	return model.Statistics{}, nil
}

func TestRunOnceVisitsEverything(t *testing.T) {
	projects := &stubProjects{active: []int{1, 2}, milestones: map[int][]int{1: {10, 11}, 2: {20}}}
	cascade := &recordingCascade{}
	stats := &recordingStats{}
	r := New(projects, stubEmployees{5, 6, 7}, cascade, stats, zaptest.NewLogger(t))

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(cascade.milestones) != 3 || len(cascade.projects) != 2 {
		t.Fatalf("milestones %v projects %v", cascade.milestones, cascade.projects)
	}
	if len(stats.ids) != 3 {
		t.Fatalf("statistics recomputed for %v", stats.ids)
	}
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	projects := &stubProjects{active: []int{1, 2}, milestones: map[int][]int{1: {10}, 2: {20}}}
	cascade := &recordingCascade{failOn: 10}
	stats := &recordingStats{}
	r := New(projects, stubEmployees{5}, cascade, stats, zaptest.NewLogger(t))

	err := r.RunOnce(context.Background())
	if !errors.Is(err, model.ErrVersionConflict) {
		t.Fatalf("err = %v, want wrapped ErrVersionConflict", err)
	}
	if len(cascade.projects) != 1 || cascade.projects[0] != 2 {
		t.Fatalf("projects reconciled = %v, want [2]", cascade.projects)
	}
	if len(stats.ids) != 1 {
		t.Fatalf("statistics not recomputed after project failure")
	}
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	r := New(&stubProjects{}, stubEmployees{}, &recordingCascade{}, &recordingStats{}, zaptest.NewLogger(t))
	r.running.Lock()
	defer r.running.Unlock()

	if err := r.RunOnce(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := New(&stubProjects{}, stubEmployees{}, &recordingCascade{}, &recordingStats{}, zaptest.NewLogger(t))
	if err := r.Start("every tuesday"); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

type stubBacklog struct {
	advances, unsettled, unscored []int
}

func (b stubBacklog) ListUnrecordedAdvanceIDs(context.Context) ([]int, error) { return b.advances, nil }
func (b stubBacklog) ListUnsettledIDs(context.Context) ([]int, error)         { return b.unsettled, nil }
func (b stubBacklog) ListUnscoredTaskIDs(context.Context) ([]int, error)      { return b.unscored, nil }

type recordingEffects struct {
	calls   []string
	noAdmin bool
}

func (e *recordingEffects) RecordAdvance(context.Context, int) (bool, error) {
	e.calls = append(e.calls, "record")
	if e.noAdmin {
		return false, model.ErrNoActiveAdmin
	}
	return true, nil
}

func (e *recordingEffects) SettleProject(context.Context, int) (int, error) {
	e.calls = append(e.calls, "settle")
	return 2, nil
}

func (e *recordingEffects) ScoreTask(context.Context, int) (int, error) {
	e.calls = append(e.calls, "score")
	return 1, nil
}

func TestRunOnceCatchesUpMissedSideEffects(t *testing.T) {
	effects := &recordingEffects{}
	stats := &recordingStats{}
	r := New(&stubProjects{}, stubEmployees{5}, &recordingCascade{}, stats, zaptest.NewLogger(t)).
		WithCatchUp(stubBacklog{advances: []int{1}, unsettled: []int{2}, unscored: []int{30, 31}}, effects)

	res, err := r.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Recorded != 1 || res.Settled != 2 || res.Scored != 2 {
		t.Fatalf("result = %+v", res)
	}
	want := []string{"record", "settle", "score", "score"}
	if len(effects.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", effects.calls, want)
	}
	for i := range want {
		if effects.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", effects.calls, want)
		}
	}
	if len(stats.ids) != 1 {
		t.Fatalf("statistics not recomputed after catch-up")
	}
}

func TestCatchUpFailureDoesNotStopPass(t *testing.T) {
	effects := &recordingEffects{noAdmin: true}
	r := New(&stubProjects{}, stubEmployees{}, &recordingCascade{}, &recordingStats{}, zaptest.NewLogger(t)).
		WithCatchUp(stubBacklog{advances: []int{1, 2}, unscored: []int{30}}, effects)

	res, err := r.run(context.Background())
	if !errors.Is(err, model.ErrNoActiveAdmin) {
		t.Fatalf("err = %v, want ErrNoActiveAdmin", err)
	}
	if res.Failures != 2 || res.Recorded != 0 || res.Scored != 1 {
		t.Fatalf("result = %+v", res)
	}
}
