package handler

import (
	"github.com/gin-gonic/gin"

	"workledger/internal/model"
)

// ContextPrincipalKey is where the principal middleware stores the
// resolved requester.
const ContextPrincipalKey = "principal"

func principalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}
