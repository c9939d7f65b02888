package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"workledger/internal/model"
	"workledger/internal/progress"
	"workledger/pkg/rbac"
)

type Scope string

const (
	ScopeSelf   Scope = "self"
	ScopeTeam   Scope = "team"
	ScopeGlobal Scope = "global"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeSelf, ScopeTeam, ScopeGlobal:
		return sc, nil
	case "":
		return ScopeSelf, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", model.ErrInvalid, s)
}

// Period is the rolling window used by trend calculations.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", model.ErrInvalid, s)
}

// Start returns the beginning of the window ending at now.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodQuarter:
		return now.AddDate(0, 0, -90)
	case PeriodYear:
		return now.AddDate(0, 0, -365)
	}
	return now.AddDate(0, 0, -30)
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	// keeps (page-1)*pageSize from overflowing
	maxPage = math.MaxInt32 / maxPageSize
)

type LeaderboardEntry struct {
	Position   int              `json:"position"`
	EmployeeID int              `json:"employee_id"`
	Name       string           `json:"name"`
	Points     int              `json:"points"`
	Stats      model.Statistics `json:"statistics"`
}

type LeaderboardPage struct {
	Scope    Scope              `json:"scope"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int                `json:"total"`
	Entries  []LeaderboardEntry `json:"entries"`
}

// PerformanceSummary bundles the read-side figures for one employee.
type PerformanceSummary struct {
	EmployeeID int              `json:"employee_id"`
	Points     int              `json:"points"`
	Rank       int              `json:"rank"`
	Period     Period           `json:"period"`
	Trend      Trend            `json:"trend"`
	TrendValue string           `json:"trend_value"`
	Stats      model.Statistics `json:"statistics"`
}

// RankingService is read-only over the performance ledger.
type RankingService struct {
	employees EmployeeStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewRankingService(employees EmployeeStore, logger *zap.Logger) *RankingService {
	return &RankingService{employees: employees, logger: logger, now: time.Now}
}

// EffectiveScope narrows a requested scope to what requester may see.
// Narrowing is silent.
func EffectiveScope(requester model.Principal, requested Scope) Scope {
	role := string(requester.Ref.Kind)
	switch requested {
	case ScopeGlobal:
		if rbac.HasPermission(role, rbac.PermissionReadAllPerformance) {
			return ScopeGlobal
		}
	case ScopeTeam:
		if requester.Ref.Kind == model.KindEmployee && requester.IsTeamLead &&
			rbac.HasPermission(role, rbac.PermissionReadTeamPerformance) {
			return ScopeTeam
		}
	}
	return ScopeSelf
}

// Leaderboard orders the scoped employees by points, highest first. Equal
// points keep whatever order storage returns.
func (r *RankingService) Leaderboard(ctx context.Context, requester model.Principal, scope Scope, page, pageSize int) (*LeaderboardPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}

	effective := EffectiveScope(requester, scope)
	result := &LeaderboardPage{Scope: effective, Page: page, PageSize: pageSize, Entries: []LeaderboardEntry{}}

	var ids []int
	switch effective {
	case ScopeGlobal:
		ids = nil
	case ScopeTeam:
		reports, err := r.employees.ListDirectReports(ctx, requester.Ref.ID)
		if err != nil {
			return nil, fmt.Errorf("list direct reports: %w", err)
		}
		ids = make([]int, 0, len(reports)+1)
		ids = append(ids, requester.Ref.ID)
		for _, e := range reports {
			ids = append(ids, e.ID)
		}
	default:
		if requester.Ref.Kind != model.KindEmployee {
			// only employees carry points
			return result, nil
		}
		ids = []int{requester.Ref.ID}
	}

	offset := (page - 1) * pageSize
	employees, total, err := r.employees.Leaderboard(ctx, ids, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	result.Total = total
	for i, e := range employees {
		result.Entries = append(result.Entries, LeaderboardEntry{
			Position:   offset + i + 1,
			EmployeeID: e.ID,
			Name:       e.Name,
			Points:     e.Points,
			Stats:      e.Stats,
		})
	}
	return result, nil
}

// Rank is 1 plus the number of employees with strictly more points, so
// tied employees share a rank.
func (r *RankingService) Rank(ctx context.Context, employeeID int) (int, error) {
	e, err := r.activeEmployee(ctx, employeeID)
	if err != nil {
		return 0, err
	}
	return r.rankOf(ctx, e.Points)
}

// activeEmployee hides deactivated employees: they are outside every
// leaderboard, so they have no rank either.
func (r *RankingService) activeEmployee(ctx context.Context, employeeID int) (*model.Employee, error) {
	e, err := r.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("employee %d is inactive: %w", employeeID, model.ErrNotFound)
	}
	return e, nil
}

func (r *RankingService) rankOf(ctx context.Context, points int) (int, error) {
	above, err := r.employees.CountWithPointsAbove(ctx, points)
	if err != nil {
		return 0, fmt.Errorf("count employees above: %w", err)
	}
	return above + 1, nil
}

func (r *RankingService) Trend(ctx context.Context, employeeID int, period Period) (Trend, error) {
	history, err := r.employees.ListHistory(ctx, employeeID)
	if err != nil {
		return "", fmt.Errorf("list points history: %w", err)
	}
	return TrendOf(history, period.Start(r.now())), nil
}

func (r *RankingService) TrendValue(ctx context.Context, employeeID int, period Period) (string, error) {
	history, err := r.employees.ListHistory(ctx, employeeID)
	if err != nil {
		return "", fmt.Errorf("list points history: %w", err)
	}
	return TrendValueOf(history, period.Start(r.now())), nil
}

// Summary reads points, rank, statistics and trend for one employee.
func (r *RankingService) Summary(ctx context.Context, employeeID int, period Period) (*PerformanceSummary, error) {
	e, err := r.activeEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	rank, err := r.rankOf(ctx, e.Points)
	if err != nil {
		return nil, err
	}
	history, err := r.employees.ListHistory(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list points history: %w", err)
	}
	start := period.Start(r.now())
	return &PerformanceSummary{
		EmployeeID: e.ID,
		Points:     e.Points,
		Rank:       rank,
		Period:     period,
		Trend:      TrendOf(history, start),
		TrendValue: TrendValueOf(history, start),
		Stats:      e.Stats,
	}, nil
}

// splitSums sums deltas at or after start and before start.
func splitSums(history []model.PointsEntry, start time.Time) (within, before int) {
	for _, h := range history {
		if h.Timestamp.Before(start) {
			before += h.Delta
		} else {
			within += h.Delta
		}
	}
	return within, before
}

// TrendOf needs at least two history entries to report a direction.
func TrendOf(history []model.PointsEntry, start time.Time) Trend {
	if len(history) < 2 {
		return TrendStable
	}
	within, before := splitSums(history, start)
	switch {
	case within > before:
		return TrendUp
	case within < before:
		return TrendDown
	}
	return TrendStable
}

// TrendValueOf formats the signed percent change of the window against
// everything before it, e.g. "+25%", "-50%" or "0%".
func TrendValueOf(history []model.PointsEntry, start time.Time) string {
	if len(history) < 2 {
		return "0%"
	}
	within, before := splitSums(history, start)
	if before == 0 {
		if within > 0 {
			return "+100%"
		}
		return "0%"
	}
	abs := before
	if abs < 0 {
		abs = -abs
	}
	pct := progress.Round(100 * float64(within-before) / float64(abs))
	switch {
	case pct > 0:
		return fmt.Sprintf("+%d%%", pct)
	case pct < 0:
		return fmt.Sprintf("%d%%", pct)
	}
	return "0%"
}
