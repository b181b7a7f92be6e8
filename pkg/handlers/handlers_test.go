package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arnavshah/covers-scheduler-api/pkg/auth"
	"github.com/arnavshah/covers-scheduler-api/pkg/database"
	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/arnavshah/covers-scheduler-api/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const staffCSV = `name,phone,role,available_start,available_end
Ava,5550001,waiter,2025-06-18 08:00,2025-06-18 23:00
Ben,5550002,waiter,2025-06-18 08:00,2025-06-18 20:00
Cy,5550003,chef,2025-06-01 16:00,2025-06-30 23:30
Dee,5550004,waiter,2025-06-10 17:00,2025-06-25 22:00
Eli,5550005,cleaner,2025-06-19 08:00,2025-06-30 23:00
Fay,5550006,waiter,2025-06-18 12:00,2025-06-18 21:00
`

type fakeForecaster struct {
	result *models.ForecastResult
	err    error
	calls  int
}

func (f *fakeForecaster) Forecast(_ context.Context, _ string, _ int) (*models.ForecastResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeNotifier struct {
	got []models.Notification
}

func (n *fakeNotifier) Dispatch(notes []models.Notification) int {
	n.got = append(n.got, notes...)
	return len(notes)
}

type downDirectory struct{}

func (downDirectory) FindAvailable(context.Context, scheduler.AvailabilityQuery) ([]models.Contact, error) {
	return nil, errors.New("connection refused")
}

type testEnv struct {
	h          *Handler
	r          *gin.Engine
	forecaster *fakeForecaster
	notifier   *fakeNotifier
	key        string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open("", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	a, err := auth.New("jwt-secret", "master-secret")
	require.NoError(t, err)

	planner := scheduler.NewPlanner(scheduler.DefaultRatios)
	forecaster := &fakeForecaster{}
	notifier := &fakeNotifier{}
	h := &Handler{
		DB:         db,
		Auth:       a,
		Forecaster: forecaster,
		Planner:    planner,
		Scheduler:  scheduler.NewScheduler(planner, scheduler.NewMatcher(database.NewStaffDirectory(db)), zap.NewNop()),
		Notifier:   notifier,
		Limiter:    NewKeyLimiter(0, 0),
		Log:        zap.NewNop(),
	}

	r := gin.New()
	r.POST("/admin/login", h.Login)
	admin := r.Group("/admin", h.AuthMiddleware())
	admin.POST("/keys", h.GenerateKey)
	admin.GET("/keys", h.ListKeys)
	admin.PUT("/keys/:id", h.UpdateKeyLimit)
	admin.DELETE("/keys/:id", h.RevokeKey)
	admin.GET("/usage/:id", h.GetUsage)
	admin.GET("/staff", h.ListStaff)
	admin.POST("/staff", h.CreateStaff)
	admin.DELETE("/staff/:id", h.DeleteStaff)
	admin.POST("/staff/csv", h.ImportStaffCSV)
	api := r.Group("/api", h.APIKeyMiddleware())
	api.POST("/predict", h.Predict)
	api.POST("/schedule", h.Schedule)
	api.POST("/validate", h.ValidateInput)
	api.GET("/usage", h.GetMyUsage)

	return &testEnv{h: h, r: r, forecaster: forecaster, notifier: notifier, key: a.GenerateAPIKey("bistro")}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedStaff(t *testing.T) {
	t.Helper()
	_, err := database.ImportStaffCSV(context.Background(), e.h.DB, strings.NewReader(staffCSV))
	require.NoError(t, err)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := auth.EnsureAdminExists(e.h.DB, "admin", "admin123")
	require.NoError(t, err)
	w := e.do(t, http.MethodPost, "/admin/login", "", gin.H{"username": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAPIKeyMiddleware(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/usage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/usage", "bistro.0000", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/usage", e.key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bistro", decode(t, w)["key_name"])
}

func TestPredict(t *testing.T) {
	e := newTestEnv(t)
	e.forecaster.result = &models.ForecastResult{
		Covers:        410,
		RequiredStaff: models.StaffDemand{models.RoleWaiter: 21, models.RoleChef: 9, models.RoleCleaner: 6},
	}

	w := e.do(t, http.MethodPost, "/api/predict", e.key, `{"date":"2025-06-21","hour":"19"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"covers":410,"required_staff":{"waiter":21,"chef":9,"cleaner":6}}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/usage", e.key, nil)
	totals := decode(t, w)["totals"].(map[string]any)
	assert.EqualValues(t, 1, totals["forecasts"])
	assert.EqualValues(t, 410, totals["covers"])
}

func TestPredictErrors(t *testing.T) {
	e := newTestEnv(t)

	t.Run("missing hour", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/predict", e.key, `{"date":"2025-06-18"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("non numeric hour", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/predict", e.key, `{"date":"2025-06-18","hour":"nine"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	assert.Zero(t, e.forecaster.calls)

	t.Run("no features", func(t *testing.T) {
		e.forecaster.err = errs.ErrFeatureNotFound
		w := e.do(t, http.MethodPost, "/api/predict", e.key, `{"date":"2030-01-01","hour":9}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"No features found for this date and hour"}`, w.Body.String())
	})
	t.Run("bad date", func(t *testing.T) {
		e.forecaster.err = errs.Malformed("date %q", "18/06/2025")
		w := e.do(t, http.MethodPost, "/api/predict", e.key, `{"date":"18/06/2025","hour":9}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("model failure", func(t *testing.T) {
		e.forecaster.err = errors.New("boom")
		w := e.do(t, http.MethodPost, "/api/predict", e.key, `{"date":"2025-06-18","hour":9}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestSchedule(t *testing.T) {
	e := newTestEnv(t)
	e.seedStaff(t)

	body := `{"covers":30,"shift_start":"2025-06-18 18:00","shift_end":"2025-06-18 21:00"}`
	w := e.do(t, http.MethodPost, "/api/schedule", e.key, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Ava", "Dee"}, resp.Scheduled[models.RoleWaiter])
	assert.Equal(t, []string{"Cy"}, resp.Scheduled[models.RoleChef])
	assert.Equal(t, []string{}, resp.Scheduled[models.RoleCleaner])
	assert.Equal(t, map[models.Role]int{models.RoleCleaner: 1}, resp.Unfilled)
	assert.Equal(t, 3, resp.NotificationsQueued)

	require.Len(t, e.notifier.got, 3)
	assert.Equal(t, "Hi Ava, you're scheduled on 2025-06-18 18:00 to 2025-06-18 21:00. Reply YES to confirm.",
		e.notifier.got[0].Message)
	assert.Contains(t, w.Body.String(), `"cleaner":[]`)
}

func TestScheduleRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	e.seedStaff(t)

	bodies := map[string]string{
		"inverted window": `{"covers":30,"shift_start":"2025-06-18 21:00","shift_end":"2025-06-18 18:00"}`,
		"empty window":    `{"covers":30,"shift_start":"2025-06-18 18:00","shift_end":"2025-06-18 18:00"}`,
		"negative covers": `{"covers":-1,"shift_start":"2025-06-18 18:00","shift_end":"2025-06-18 21:00"}`,
		"missing covers":  `{"shift_start":"2025-06-18 18:00","shift_end":"2025-06-18 21:00"}`,
		"bad timestamp":   `{"covers":30,"shift_start":"tonight","shift_end":"2025-06-18 21:00"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/schedule", e.key, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, e.notifier.got)
}

func TestScheduleDirectoryDown(t *testing.T) {
	e := newTestEnv(t)
	e.h.Scheduler = scheduler.NewScheduler(e.h.Planner, scheduler.NewMatcher(downDirectory{}), zap.NewNop())

	body := `{"covers":30,"shift_start":"2025-06-18 18:00","shift_end":"2025-06-18 21:00"}`
	w := e.do(t, http.MethodPost, "/api/schedule", e.key, body)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp models.ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Failures, 3)
	assert.NotEmpty(t, resp.Error)
	for _, role := range models.Roles {
		assert.Equal(t, []string{}, resp.Scheduled[role])
	}
	assert.Empty(t, e.notifier.got)
}

func TestValidateInput(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/validate", e.key,
		`{"covers":410,"shift_start":"2025-06-18 18:00","shift_end":"2025-06-18 21:00"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["valid"])
	assert.Equal(t, map[string]any{"waiter": 21.0, "chef": 9.0, "cleaner": 6.0}, resp["demand"])

	w = e.do(t, http.MethodPost, "/api/validate", e.key,
		`{"covers":410,"shift_start":"2025-06-18 21:00","shift_end":"2025-06-18 18:00"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["valid"])

	w = e.do(t, http.MethodPost, "/api/validate", e.key, `{"covers":"many"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDailyQuota(t *testing.T) {
	e := newTestEnv(t)
	key := e.h.Auth.GenerateAPIKey("tiny")
	require.NoError(t, e.h.DB.Create(&database.APIKey{Key: key, Name: "tiny", RateLimit: 1}).Error)
	e.forecaster.result = &models.ForecastResult{Covers: 10, RequiredStaff: models.StaffDemand{}}

	w := e.do(t, http.MethodPost, "/api/predict", key, `{"date":"2025-06-18","hour":9}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/predict", key, `{"date":"2025-06-18","hour":9}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUpdatedLimitKeepsKeyUsable(t *testing.T) {
	e := newTestEnv(t)
	token := e.adminToken(t)
	e.forecaster.result = &models.ForecastResult{Covers: 10, RequiredStaff: models.StaffDemand{}}

	w := e.do(t, http.MethodPost, "/admin/keys", token, gin.H{"name": "harbour", "rate_limit": 500})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	key := decode(t, w)["key"].(string)

	w = e.do(t, http.MethodPost, "/api/predict", key, `{"date":"2025-06-18","hour":9}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodPut, "/admin/keys/1", token, gin.H{"rate_limit": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/predict", key, `{"date":"2025-06-18","hour":9}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, "/api/predict", key, `{"date":"2025-06-18","hour":9}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var count int64
	require.NoError(t, e.h.DB.Model(&database.APIKey{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRevokeForgetsBucket(t *testing.T) {
	e := newTestEnv(t)
	e.h.Limiter = NewKeyLimiter(0.001, 1)
	token := e.adminToken(t)

	w := e.do(t, http.MethodPost, "/admin/keys", token, gin.H{"name": "harbour"})
	require.Equal(t, http.StatusOK, w.Code)
	key := decode(t, w)["key"].(string)

	w = e.do(t, http.MethodGet, "/api/usage", key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, e.h.Limiter.limiters, uint(1))

	w = e.do(t, http.MethodDelete, "/admin/keys/001", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, e.h.Limiter.limiters, uint(1))

	w = e.do(t, http.MethodDelete, "/admin/keys/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPerKeyRateLimit(t *testing.T) {
	e := newTestEnv(t)
	e.h.Limiter = NewKeyLimiter(0.001, 1)

	w := e.do(t, http.MethodGet, "/api/usage", e.key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/api/usage", e.key, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestKeyLimiter(t *testing.T) {
	l := NewKeyLimiter(1, 1)
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	assert.True(t, l.Allow(2))

	l.Forget(1)
	assert.True(t, l.Allow(1))

	var off *KeyLimiter
	assert.True(t, off.Allow(1))
	assert.True(t, NewKeyLimiter(0, 0).Allow(1))
}

func TestAdminKeys(t *testing.T) {
	e := newTestEnv(t)
	token := e.adminToken(t)

	w := e.do(t, http.MethodPost, "/admin/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/admin/keys", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(t, http.MethodGet, "/admin/keys", e.key, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/admin/keys", token, gin.H{"name": "harbour-grill"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode(t, w)
	key := created["key"].(string)
	assert.True(t, strings.HasPrefix(key, "harbour-grill."))

	w = e.do(t, http.MethodGet, "/api/usage", key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 10000, decode(t, w)["rate_limit"])

	w = e.do(t, http.MethodGet, "/admin/keys", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), key)
	assert.Contains(t, w.Body.String(), "har...")

	w = e.do(t, http.MethodPut, "/admin/keys/1", token, gin.H{"rate_limit": 50})
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPut, "/admin/keys/1", token, gin.H{"rate_limit": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/admin/usage/1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, "/admin/keys/1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodDelete, "/admin/keys/1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminStaff(t *testing.T) {
	e := newTestEnv(t)
	token := e.adminToken(t)

	w := e.do(t, http.MethodPost, "/admin/staff", token, gin.H{
		"name": "Gus", "phone": "5550007", "role": "Chef",
		"available_start": "2025-06-18 16:00", "available_end": "2025-06-18 23:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "chef", decode(t, w)["role"])

	w = e.do(t, http.MethodPost, "/admin/staff", token, gin.H{
		"name": "Hal", "phone": "5550008", "role": "sommelier",
		"available_start": "2025-06-18 16:00", "available_end": "2025-06-18 23:00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("staff_file", "staff.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(staffCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/staff/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 6, decode(t, rec)["imported"])

	w = e.do(t, http.MethodGet, "/admin/staff?role=chef", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["staff"], 2)

	w = e.do(t, http.MethodDelete, "/admin/staff/1", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodDelete, "/admin/staff/1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodDelete, "/admin/staff/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/admin/staff/csv", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
