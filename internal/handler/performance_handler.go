package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workledger/internal/engine"
	"workledger/internal/model"
	"workledger/pkg/rbac"
)

type Ranking interface {
	Leaderboard(ctx context.Context, requester model.Principal, scope engine.Scope, page, pageSize int) (*engine.LeaderboardPage, error)
	Rank(ctx context.Context, employeeID int) (int, error)
	Summary(ctx context.Context, employeeID int, period engine.Period) (*engine.PerformanceSummary, error)
}

type PerformanceHandler struct {
	ranking       Ranking
	defaultPeriod engine.Period
	logger        *zap.Logger
}

func NewPerformanceHandler(ranking Ranking, defaultPeriod engine.Period, logger *zap.Logger) *PerformanceHandler {
	return &PerformanceHandler{ranking: ranking, defaultPeriod: defaultPeriod, logger: logger}
}

// GetLeaderboard GET /performance/leaderboard?scope=&page=&page_size=
func (h *PerformanceHandler) GetLeaderboard(c *gin.Context) {
	requester, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	scope, err := engine.ParseScope(c.Query("scope"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	pageSize, err := queryInt(c, "page_size", 10)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
		return
	}

	result, err := h.ranking.Leaderboard(c.Request.Context(), requester, scope, page, pageSize)
	if err != nil {
		h.logger.Error("GetLeaderboard: failed to load leaderboard",
			zap.String("requester", requester.Ref.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}

	h.logger.Info("GetLeaderboard: success",
		zap.String("requester", requester.Ref.String()),
		zap.String("requested_scope", string(scope)),
		zap.String("scope", string(result.Scope)),
		zap.Int("entries", len(result.Entries)),
	)
	c.JSON(http.StatusOK, result)
}

// GetRank GET /performance/employees/:id/rank
func (h *PerformanceHandler) GetRank(c *gin.Context) {
	employeeID, ok := h.authorizeEmployee(c)
	if !ok {
		return
	}

	rank, err := h.ranking.Rank(c.Request.Context(), employeeID)
	if err != nil {
		h.writeLookupError(c, "GetRank", employeeID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employee_id": employeeID, "rank": rank})
}

// GetTrend GET /performance/employees/:id/trend?period=
func (h *PerformanceHandler) GetTrend(c *gin.Context) {
	employeeID, ok := h.authorizeEmployee(c)
	if !ok {
		return
	}

	period := h.defaultPeriod
	if raw := c.Query("period"); raw != "" {
		p, err := engine.ParsePeriod(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		period = p
	}

	summary, err := h.ranking.Summary(c.Request.Context(), employeeID, period)
	if err != nil {
		h.writeLookupError(c, "GetTrend", employeeID, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// authorizeEmployee lets employees read themselves and principals with
// read_all read anyone.
func (h *PerformanceHandler) authorizeEmployee(c *gin.Context) (int, bool) {
	requester, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return 0, false
	}

	idStr := c.Param("id")
	employeeID, err := strconv.Atoi(idStr)
	if err != nil || employeeID <= 0 {
		h.logger.Warn("Invalid employee id format", zap.String("employee_id", idStr))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return 0, false
	}

	self := requester.Ref.Kind == model.KindEmployee && requester.Ref.ID == employeeID
	role := string(requester.Ref.Kind)
	if self && rbac.HasPermission(role, rbac.PermissionReadOwnPerformance) {
		return employeeID, true
	}
	if err := rbac.CheckPermission(role, rbac.PermissionReadAllPerformance); err != nil {
		h.logger.Warn("Performance read denied",
			zap.String("requester", requester.Ref.String()),
			zap.Int("employee_id", employeeID),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return 0, false
	}
	return employeeID, true
}

func (h *PerformanceHandler) writeLookupError(c *gin.Context, op string, employeeID int, err error) {
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	h.logger.Error(op+": failed",
		zap.Int("employee_id", employeeID),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load performance"})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
