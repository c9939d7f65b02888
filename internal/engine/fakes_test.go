package engine

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"workledger/internal/model"
)

// memDB is an in-memory stand-in for the repositories. Each fake store
// below is a view over it.
type memDB struct {
	mu           sync.Mutex
	tasks        map[int]*model.Task
	milestones   map[int]*model.Milestone
	projects     map[int]*model.Project
	incentives   map[int]*model.Incentive
	transactions []model.Transaction
	admins       []model.PrincipalRef
	employees    map[int]*model.Employee
	history      []model.PointsEntry

	// called before a conditional write is checked, without the lock held
	beforeMilestoneWrite func(id int)
	beforeMove           func(id int)
	// simulates a concurrent insert between the existence check and the insert
	insertRace bool
	// offset of the last Leaderboard call
	lastOffset int
	// returned by AppendHistoryAndAdjustPoints while set
	appendErr error
}

func newMemDB() *memDB {
	return &memDB{
		tasks:      map[int]*model.Task{},
		milestones: map[int]*model.Milestone{},
		projects:   map[int]*model.Project{},
		incentives: map[int]*model.Incentive{},
		employees:  map[int]*model.Employee{},
	}
}

func (db *memDB) stores() Stores {
	return Stores{
		Tasks:        fakeTasks{db},
		Milestones:   fakeMilestones{db},
		Projects:     fakeProjects{db},
		Incentives:   fakeIncentives{db},
		Transactions: fakeTransactions{db},
		Admins:       fakeAdmins{db},
		Employees:    fakeEmployees{db},
	}
}

func (db *memDB) addTask(t model.Task) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tasks[t.ID] = &t
}

func (db *memDB) addMilestone(m model.Milestone) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.milestones[m.ID] = &m
}

func (db *memDB) addProject(p model.Project) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.projects[p.ID] = &p
}

func (db *memDB) addIncentive(i model.Incentive) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.incentives[i.ID] = &i
}

func (db *memDB) addEmployee(e model.Employee) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.employees[e.ID] = &e
}

func (db *memDB) milestone(id int) model.Milestone {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.milestones[id]
}

func (db *memDB) project(id int) model.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.projects[id]
}

func (db *memDB) incentive(id int) model.Incentive {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.incentives[id]
}

func (db *memDB) employee(id int) model.Employee {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.employees[id]
}

func (db *memDB) task(id int) model.Task {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.tasks[id]
}

func (db *memDB) historyOf(employeeID int) []model.PointsEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.PointsEntry
	for _, h := range db.history {
		if h.EmployeeID == employeeID {
			out = append(out, h)
		}
	}
	return out
}

type fakeTasks struct{ db *memDB }

func (f fakeTasks) GetTask(_ context.Context, id int) (*model.Task, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tasks[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f fakeTasks) ListByMilestone(_ context.Context, milestoneID int) ([]model.Task, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Task
	for _, t := range f.db.tasks {
		if t.MilestoneID == milestoneID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f fakeTasks) ListAssignedTo(_ context.Context, employeeID int) ([]model.Task, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Task
	for _, t := range f.db.tasks {
		for _, a := range t.Assignees {
			if a == employeeID {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (f fakeTasks) StampTransition(_ context.Context, taskID int, status model.TaskStatus, at time.Time) (*model.Task, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tasks[taskID]
	if !ok {
		return nil, model.ErrNotFound
	}
	t.Status = status
	if status == model.TaskInProgress && t.StartedAt == nil {
		stamp := at
		t.StartedAt = &stamp
	}
	if status == model.TaskCompleted && t.CompletedAt == nil {
		stamp := at
		t.CompletedAt = &stamp
	}
	cp := *t
	return &cp, nil
}

type fakeMilestones struct{ db *memDB }

func (f fakeMilestones) GetMilestone(_ context.Context, id int) (*model.Milestone, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m, ok := f.db.milestones[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f fakeMilestones) ListByProject(_ context.Context, projectID int) ([]model.Milestone, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Milestone
	for _, m := range f.db.milestones {
		if m.ProjectID == projectID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f fakeMilestones) UpdateProgress(_ context.Context, id, progress, expectedVersion int) error {
	if f.db.beforeMilestoneWrite != nil {
		f.db.beforeMilestoneWrite(id)
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m, ok := f.db.milestones[id]
	if !ok {
		return model.ErrNotFound
	}
	if m.Version != expectedVersion {
		return model.ErrVersionConflict
	}
	m.Progress = progress
	m.Version++
	return nil
}

type fakeProjects struct{ db *memDB }

func (f fakeProjects) GetProject(_ context.Context, id int) (*model.Project, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.projects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f fakeProjects) UpdateProgress(_ context.Context, id, progress, expectedVersion int) (*model.Project, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.projects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if p.Version != expectedVersion {
		return nil, model.ErrVersionConflict
	}
	p.Progress = progress
	p.Version++
	cp := *p
	return &cp, nil
}

type fakeIncentives struct{ db *memDB }

func (f fakeIncentives) FindPendingByProject(_ context.Context, projectID int) ([]model.Incentive, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Incentive
	for _, i := range f.db.incentives {
		if i.ProjectID != nil && *i.ProjectID == projectID && i.IsConversionBased && i.PendingBalance.IsPositive() {
			out = append(out, *i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f fakeIncentives) GetIncentive(_ context.Context, id int) (*model.Incentive, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	i, ok := f.db.incentives[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (f fakeIncentives) AtomicMovePendingToCurrent(_ context.Context, id int, amount decimal.Decimal) error {
	if f.db.beforeMove != nil {
		f.db.beforeMove(id)
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	i, ok := f.db.incentives[id]
	if !ok {
		return model.ErrNotFound
	}
	if !i.PendingBalance.Equal(amount) {
		return model.ErrBalanceConflict
	}
	i.CurrentBalance = i.CurrentBalance.Add(amount)
	i.PendingBalance = decimal.Zero
	return nil
}

type fakeTransactions struct{ db *memDB }

func (f fakeTransactions) ExistsByDedupKey(_ context.Context, key model.DedupKey) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, t := range f.db.transactions {
		if t.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeTransactions) InsertIfAbsent(_ context.Context, tx *model.Transaction) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.insertRace {
		f.db.insertRace = false
		f.db.transactions = append(f.db.transactions, model.Transaction{ID: len(f.db.transactions) + 1, Key: tx.Key})
	}
	for _, t := range f.db.transactions {
		if t.Key == tx.Key {
			return false, nil
		}
	}
	tx.ID = len(f.db.transactions) + 1
	f.db.transactions = append(f.db.transactions, *tx)
	return true, nil
}

type fakeAdmins struct{ db *memDB }

func (f fakeAdmins) FindFirstActive(_ context.Context) (model.PrincipalRef, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if len(f.db.admins) == 0 {
		return model.PrincipalRef{}, model.ErrNoActiveAdmin
	}
	return f.db.admins[0], nil
}

type fakeEmployees struct{ db *memDB }

func (f fakeEmployees) GetEmployee(_ context.Context, id int) (*model.Employee, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.employees[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f fakeEmployees) AppendHistoryAndAdjustPoints(_ context.Context, entry model.PointsEntry) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.appendErr != nil {
		return false, f.db.appendErr
	}
	e, ok := f.db.employees[entry.EmployeeID]
	if !ok {
		return false, model.ErrNotFound
	}
	for _, h := range f.db.history {
		if h.EmployeeID == entry.EmployeeID && h.TaskID == entry.TaskID {
			return false, nil
		}
	}
	entry.ID = len(f.db.history) + 1
	f.db.history = append(f.db.history, entry)
	e.Points += entry.Delta
	return true, nil
}

func (f fakeEmployees) ListHistory(_ context.Context, employeeID int) ([]model.PointsEntry, error) {
	return f.db.historyOf(employeeID), nil
}

func (f fakeEmployees) SaveStatistics(_ context.Context, employeeID int, stats model.Statistics) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.employees[employeeID]
	if !ok {
		return model.ErrNotFound
	}
	e.Stats = stats
	return nil
}

func (f fakeEmployees) ListDirectReports(_ context.Context, managerID int) ([]model.Employee, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Employee
	for _, e := range f.db.employees {
		if e.ManagerID != nil && *e.ManagerID == managerID && e.IsActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f fakeEmployees) Leaderboard(_ context.Context, ids []int, limit, offset int) ([]model.Employee, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.lastOffset = offset
	want := map[int]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var all []model.Employee
	for _, e := range f.db.employees {
		if !e.IsActive || (ids != nil && !want[e.ID]) {
			continue
		}
		all = append(all, *e)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].Points > all[b].Points })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f fakeEmployees) CountWithPointsAbove(_ context.Context, points int) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, e := range f.db.employees {
		if e.IsActive && e.Points > points {
			n++
		}
	}
	return n, nil
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, db *memDB) *Engine {
	t.Helper()
	return New(db.stores(), zaptest.NewLogger(t)).WithClock(func() time.Time { return testNow })
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}
