package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestOK(t *testing.T) {
	w, resp := run(func(c *gin.Context) { OK(c, map[string]int{"id": 1}) })
	if w.Code != http.StatusOK || resp.Code != 0 || resp.Message != "success" {
		t.Errorf("unexpected: %d %+v", w.Code, resp)
	}
}

func TestErrorWithDetails(t *testing.T) {
	w, resp := run(func(c *gin.Context) {
		ErrorWithDetails(c, http.StatusBadRequest, CodeInvalidParams, "invalid", []string{"slots[0]"})
	})
	if w.Code != http.StatusBadRequest || resp.Code != CodeInvalidParams {
		t.Errorf("unexpected: %d %+v", w.Code, resp)
	}
	if resp.Details == nil {
		t.Error("details missing")
	}
}

func TestShortcuts(t *testing.T) {
	cases := []struct {
		fn   func(c *gin.Context)
		want int
	}{
		{func(c *gin.Context) { Conflict(c, 13004, "dup") }, http.StatusConflict},
		{func(c *gin.Context) { BadGateway(c, "storage down") }, http.StatusBadGateway},
		{func(c *gin.Context) { InternalError(c) }, http.StatusInternalServerError},
		{func(c *gin.Context) { Forbidden(c, CodeForbidden, "no") }, http.StatusForbidden},
	}
	for _, tc := range cases {
		if w, _ := run(tc.fn); w.Code != tc.want {
			t.Errorf("status = %d, want %d", w.Code, tc.want)
		}
	}
}
