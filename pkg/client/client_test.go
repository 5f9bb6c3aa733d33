package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow/backend/internal/dto"
	apperrors "workflow/backend/pkg/errors"
)

// fakeAPI is a scripted server. Handlers are keyed by "METHOD /path".
type fakeAPI struct {
	t *testing.T

	mu       sync.Mutex
	calls    []string
	auth     []string
	stored   map[string]string
	handlers map[string]http.HandlerFunc
	srv      *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t, stored: map[string]string{}, handlers: map[string]http.HandlerFunc{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	h, ok := f.handlers[key]
	f.mu.Unlock()
	if !ok {
		writeEnvelope(w, http.StatusNotFound, 10006, "no route", nil)
		return
	}
	h(w, r)
}

func (f *fakeAPI) on(key string, h http.HandlerFunc) { f.handlers[key] = h }

func (f *fakeAPI) called(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) client(opts ...Option) *Client {
	return New(f.srv.URL+"/api/v1/", opts...)
}

func writeEnvelope(w http.ResponseWriter, status, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": msg, "data": data})
}

func ok(data interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { writeEnvelope(w, http.StatusOK, 0, "success", data) }
}

func fail(status, code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { writeEnvelope(w, status, code, "failed", nil) }
}

func (f *fakeAPI) withLogin(role string) {
	f.on("POST /api/v1/auth/login", ok(dto.AuthResponse{Token: "tok-1", Type: "Bearer", ID: 3, Username: "alice", Role: role}))
}

func login(t *testing.T, f *fakeAPI, c *Client) *Session {
	t.Helper()
	sess, err := c.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	return sess
}

// ═══════════════════════════════════════════════════════════
// Session
// ═══════════════════════════════════════════════════════════

func TestLogin_SessionCarriesToken(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.on("GET /api/v1/auth/me", ok(dto.UserResponse{ID: 3, Username: "alice"}))
	c := f.client()

	sess := login(t, f, c)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Empty(t, sess.User.Token, "token must not be exposed on the session user")

	me, err := c.Me(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, uint(3), me.ID)
	assert.Equal(t, "Bearer tok-1", f.auth[len(f.auth)-1])
	assert.Equal(t, "", f.auth[0], "login is anonymous")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFakeAPI(t)
	f.on("POST /api/v1/auth/login", fail(http.StatusUnauthorized, 11001))

	_, err := f.client().Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 11001, apiErr.Code)
}

func TestLogout_ClosesSession(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.on("POST /api/v1/auth/logout", ok(nil))
	c := f.client()
	sess := login(t, f, c)

	require.NoError(t, c.Logout(context.Background(), sess))
	before := f.total()

	_, err := c.Timetable(context.Background(), sess)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, before, f.total(), "closed session must not reach the network")
}

func TestLogout_ClosesEvenWhenServerFails(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.on("POST /api/v1/auth/logout", fail(http.StatusInternalServerError, 50000))
	c := f.client()
	sess := login(t, f, c)

	err := c.Logout(context.Background(), sess)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)

	_, err = c.Timetable(context.Background(), sess)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_ExpiresAfterOneDay(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.on("GET /api/v1/student/timetable", ok(dto.TimetableResponse{Slots: []dto.TimeSlot{}}))

	now := time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)
	c := f.client(WithClock(func() time.Time { return now }))
	sess := login(t, f, c)
	assert.Equal(t, now.Add(24*time.Hour), sess.ExpiresAt())

	now = now.Add(23 * time.Hour)
	_, err := c.Timetable(context.Background(), sess)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = c.Timetable(context.Background(), sess)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

// ═══════════════════════════════════════════════════════════
// Error mapping
// ═══════════════════════════════════════════════════════════

func TestStatusToKind(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, apperrors.ErrValidation},
		{http.StatusUnauthorized, apperrors.ErrForbidden},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusInternalServerError, apperrors.ErrUpstream},
		{http.StatusBadGateway, apperrors.ErrUpstream},
	}
	for _, tc := range cases {
		f := newFakeAPI(t)
		f.withLogin("PM")
		f.on("POST /api/v1/pm/projects/4/members/9", fail(tc.status, 1))
		c := f.client()
		sess := login(t, f, c)

		_, err := c.AddMember(context.Background(), sess, 4, 9)
		assert.ErrorIs(t, err, tc.kind, "status %d", tc.status)
	}
}

func TestValidationDetailsDecoded(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("ADMIN")
	f.on("PUT /api/v1/admin/projects/1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":10001,"message":"validation failed","details":[{"field":"difficultyLevel","message":"must be between 1 and 5","value":9}]}`)
	})
	c := f.client()
	sess := login(t, f, c)

	nine := 9
	_, err := c.UpdateProject(context.Background(), sess, 1, dto.UpdateProjectRequest{DifficultyLevel: &nine})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "difficultyLevel", apiErr.Fields[0].Field)
}

func TestNetworkFailureIsUpstream(t *testing.T) {
	f := newFakeAPI(t)
	c := f.client()
	f.srv.Close()

	_, err := c.Login(context.Background(), "alice", "x")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

// ═══════════════════════════════════════════════════════════
// Local validation
// ═══════════════════════════════════════════════════════════

func TestReplaceTimetable_UnknownDayNeverLeaves(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	c := f.client()
	sess := login(t, f, c)
	before := f.total()

	_, err := c.ReplaceTimetable(context.Background(), sess, []dto.TimeSlot{
		{DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00"},
		{DayOfWeek: "Funday", StartTime: "09:00", EndTime: "10:00"},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, before, f.total())
}

func TestSetProjectStatus_UnknownLiteral(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("PM")
	f.on("PUT /api/v1/pm/projects/4/status", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, 0, "success", dto.ProjectResponse{ID: 4, Status: r.URL.Query().Get("status")})
	})
	c := f.client()
	sess := login(t, f, c)

	_, err := c.SetProjectStatus(context.Background(), sess, 4, "ARCHIVED")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, f.called("PUT /api/v1/pm/projects/4/status"))

	p, err := c.SetProjectStatus(context.Background(), sess, 4, "HELP")
	require.NoError(t, err)
	assert.Equal(t, "HELP", p.Status)
}

func TestCreateProject_FieldRange(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("ADMIN")
	c := f.client()
	sess := login(t, f, c)

	_, err := c.CreateProject(context.Background(), sess, dto.CreateProjectRequest{ProjectName: "Portal", DifficultyLevel: 6, DurationDays: 10})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, f.called("POST /api/v1/admin/projects"))
}

func TestRoleRouting(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("ADMIN")
	f.on("GET /api/v1/admin/projects/status/overview", ok(dto.ProjectStatusOverview{}))
	f.on("GET /api/v1/admin/users/12/timetable", ok(dto.TimetableResponse{Slots: []dto.TimeSlot{}}))
	c := f.client()
	sess := login(t, f, c)

	_, err := c.Overview(context.Background(), sess)
	require.NoError(t, err)
	_, err = c.StudentTimetable(context.Background(), sess, 12)
	require.NoError(t, err)
}

// ═══════════════════════════════════════════════════════════
// Upload workflow
// ═══════════════════════════════════════════════════════════

const icsBody = "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"

func (f *fakeAPI) withPresign() {
	f.on("POST /api/v1/student/timetable/presign", func(w http.ResponseWriter, r *http.Request) {
		var req dto.PresignRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeEnvelope(w, http.StatusOK, 0, "success", dto.PresignResponse{
			URL:        f.srv.URL + "/store/timetables/3/abc-" + req.FileName + "?X-Amz-Signature=x",
			ObjectName: "timetables/3/abc-" + req.FileName,
		})
	})
}

func (f *fakeAPI) withStore(status int) {
	f.on("PUT /store/timetables/3/abc-week.ics", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.stored[r.URL.Path] = string(b)
		f.mu.Unlock()
		w.WriteHeader(status)
	})
}

func TestUploadTimetable_Handshake(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.withPresign()
	f.withStore(http.StatusOK)
	f.on("POST /api/v1/student/timetable/notify", ok(dto.TimetableResponse{Slots: []dto.TimeSlot{{DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00"}}}))
	c := f.client()
	sess := login(t, f, c)

	out, wf, err := c.UploadTimetable(context.Background(), sess, "week.ics", "text/calendar", strings.NewReader(icsBody))
	require.NoError(t, err)
	assert.Len(t, out.Slots, 1)
	assert.Equal(t, StateFinalized, wf.State)
	assert.False(t, wf.Fallback)
	assert.Equal(t, "timetables/3/abc-week.ics", wf.ObjectName)
	assert.Equal(t, icsBody, f.stored["/store/timetables/3/abc-week.ics"])
	assert.Equal(t, 0, f.called("POST /api/v1/student/timetable/upload"))

	// the presigned PUT carries no bearer token
	for i, call := range f.calls {
		if strings.HasPrefix(call, "PUT /store/") {
			assert.Empty(t, f.auth[i])
		}
	}
}

func TestUploadTimetable_FallbackWhenPresignFails(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.on("POST /api/v1/student/timetable/presign", fail(http.StatusBadGateway, 50200))
	var gotName, gotBody string
	f.on("POST /api/v1/student/timetable/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, 10001, err.Error(), nil)
			return
		}
		defer file.Close()
		b, _ := io.ReadAll(file)
		gotName, gotBody = header.Filename, string(b)
		writeEnvelope(w, http.StatusOK, 0, "success", dto.TimetableResponse{Slots: []dto.TimeSlot{}})
	})
	c := f.client()
	sess := login(t, f, c)

	_, wf, err := c.UploadTimetable(context.Background(), sess, "week.ics", "", strings.NewReader(icsBody))
	require.NoError(t, err)
	assert.True(t, wf.Fallback)
	assert.Equal(t, StateFinalized, wf.State)
	assert.Equal(t, "week.ics", gotName)
	assert.Equal(t, icsBody, gotBody)
}

func TestUploadTimetable_TransferFailureNoFallback(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.withPresign()
	f.withStore(http.StatusInternalServerError)
	c := f.client()
	sess := login(t, f, c)

	_, wf, err := c.UploadTimetable(context.Background(), sess, "week.ics", "text/calendar", strings.NewReader(icsBody))
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Equal(t, StateRequested, wf.State)
	assert.False(t, wf.Fallback)
	assert.Equal(t, 0, f.called("POST /api/v1/student/timetable/upload"))
	assert.Equal(t, 0, f.called("POST /api/v1/student/timetable/notify"))
}

func TestUploadTimetable_FinalizeFailureLeavesTransferred(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	f.withPresign()
	f.withStore(http.StatusOK)
	f.on("POST /api/v1/student/timetable/notify", fail(http.StatusBadRequest, 14003))
	c := f.client()
	sess := login(t, f, c)

	_, wf, err := c.UploadTimetable(context.Background(), sess, "week.ics", "text/calendar", strings.NewReader(icsBody))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, StateTransferred, wf.State)
	assert.Equal(t, 0, f.called("POST /api/v1/student/timetable/upload"))
	assert.Equal(t, "transferred", wf.State.String())
}

func TestUploadTimetable_ClosedSession(t *testing.T) {
	f := newFakeAPI(t)
	f.withLogin("STUDENT")
	c := f.client()
	sess := login(t, f, c)
	sess.Close()
	before := f.total()

	_, wf, err := c.UploadTimetable(context.Background(), sess, "week.ics", "", strings.NewReader(icsBody))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Nil(t, wf)
	assert.Equal(t, before, f.total())
}
