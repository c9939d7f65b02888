package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workledger/internal/reconcile"
	"workledger/pkg/rbac"
)

type OutboxReplayer interface {
	ReplayFailed(ctx context.Context, limit int) (int64, error)
}

type Reconciler interface {
	RunOnce(ctx context.Context) error
}

// AdminHandler exposes operational endpoints restricted to admins.
type AdminHandler struct {
	outbox     OutboxReplayer
	reconciler Reconciler
	logger     *zap.Logger
}

func NewAdminHandler(outbox OutboxReplayer, reconciler Reconciler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{outbox: outbox, reconciler: reconciler, logger: logger}
}

// RequireOperator aborts unless the requester may operate the engine.
func (h *AdminHandler) RequireOperator(c *gin.Context) {
	requester, ok := principalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if err := rbac.CheckPermission(string(requester.Ref.Kind), rbac.PermissionOperateEngine); err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

// ReplayOutbox POST /admin/outbox/replay?limit=
func (h *AdminHandler) ReplayOutbox(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	n, err := h.outbox.ReplayFailed(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("ReplayOutbox: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay outbox"})
		return
	}
	h.logger.Info("ReplayOutbox: success", zap.Int64("replayed", n), zap.String("by", requesterOf(c)))
	c.JSON(http.StatusOK, gin.H{"replayed": n})
}

// Reconcile POST /admin/reconcile runs one reconciliation pass inline.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	err := h.reconciler.RunOnce(c.Request.Context())
	if errors.Is(err, reconcile.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Reconcile: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
}

func requesterOf(c *gin.Context) string {
	p, ok := principalFrom(c)
	if !ok {
		return ""
	}
	return p.Ref.String()
}
