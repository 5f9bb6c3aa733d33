package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/pkg/response"
)

// Context keys set by middleware.JWTAuth.
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// MustGetActor reads the authenticated caller. On false a 401 has been
// written and the handler should return.
func MustGetActor(c *gin.Context) (policy.Actor, bool) {
	id, ok := c.Get(CtxUserID)
	uid, okID := id.(uint)
	role, okRole := c.Get(CtxRole)
	r, okR := role.(model.Role)
	if !ok || !okID || uid == 0 || !okRole || !okR {
		response.Unauthorized(c, response.CodeUnauthenticated, "not authenticated")
		return policy.Actor{}, false
	}
	return policy.Actor{UserID: uid, Role: r}, true
}

// tokenRemaining returns the token id and how long it stays valid.
func tokenRemaining(c *gin.Context) (string, time.Duration) {
	jti := c.GetString(CtxTokenJTI)
	exp, _ := c.Get(CtxTokenExp)
	if t, ok := exp.(time.Time); ok {
		return jti, time.Until(t)
	}
	return jti, 0
}

// parseID reads a positive numeric path parameter, answering 400 otherwise.
func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		response.BadRequest(c, response.CodeInvalidParams, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
