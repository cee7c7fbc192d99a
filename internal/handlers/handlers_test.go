package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"automations/internal/config"
	"automations/internal/metrics"
	"automations/internal/models"
	"automations/internal/recurrence"
	"automations/internal/services"
	"automations/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubStrategy awards a fixed number of users.
type stubStrategy struct {
	awarded int
}

func (s stubStrategy) Call(ctx context.Context, a *models.Automation) (services.Result, error) {
	return services.AwardResult(s.awarded), nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:handlers_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	rec := recurrence.NewEvaluator()
	strategy := stubStrategy{awarded: 2}
	exec := services.NewExecutor(st, rec, services.Strategies{
		FirstOrgPostBadge:   strategy,
		ArticleContentBadge: strategy,
		WarmWelcomeBadge:    strategy,
	}, log)
	svc := services.NewAutomationService(st, rec, exec, log)

	cfg := config.GetDefaultConfig()
	r := NewRouter("automations-test", NewHealthHandler(cfg, db, log), NewAutomationHandler(svc), log)
	return &testServer{router: r, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func validRequest() map[string]interface{} {
	return map[string]interface{}{
		"name":             "welcome badges",
		"bot_id":           1,
		"service_name":     "warm_welcome_badge",
		"action":           "award_badge",
		"action_config":    map[string]interface{}{"badge_slug": "warm-welcome"},
		"frequency":        "daily",
		"frequency_config": map[string]interface{}{"hour": 9, "minute": 0},
	}
}

func TestAutomationRoutes_CreateGetList(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/automations", validRequest())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Automation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.AutomationStateActive, created.State)
	assert.True(t, created.NextRunAt.After(time.Now().UTC()))

	w = s.do(t, http.MethodGet, "/api/automations/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/automations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Automation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestAutomationRoutes_CreateRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   string
	}{
		{"missing field", func(m map[string]interface{}) { delete(m, "service_name") }, "Invalid request"},
		{"unknown service", func(m map[string]interface{}) { m["service_name"] = "nope" }, "Unknown service: nope"},
		{"bad frequency", func(m map[string]interface{}) { m["frequency"] = "monthly" }, "unsupported frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			w := s.do(t, http.MethodPost, "/api/automations", req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestAutomationRoutes_RunAndRuns(t *testing.T) {
	metrics.Reset()
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/automations", validRequest()).Code)

	w := s.do(t, http.MethodPost, "/api/automations/1/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res services.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.UsersAwarded)

	w = s.do(t, http.MethodGet, "/api/automations/1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs []models.AutomationRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusSuccess, runs[0].Status)

	w = s.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, uint64(1), snap.ByServiceStatus["warm_welcome_badge/success"])
	assert.GreaterOrEqual(t, snap.UsersAwarded, uint64(2))
}

func TestAutomationRoutes_RunWhileRunningConflicts(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/automations", validRequest()).Code)
	require.NoError(t, s.db.Model(&models.Automation{}).Where("id = ?", 1).Update("state", models.AutomationStateRunning).Error)

	w := s.do(t, http.MethodPost, "/api/automations/1/run", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgAlreadyRunning)
}

func TestAutomationRoutes_Reactivate(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/automations", validRequest()).Code)

	w := s.do(t, http.MethodPost, "/api/automations/1/reactivate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, s.db.Model(&models.Automation{}).Where("id = ?", 1).Update("state", models.AutomationStateFailed).Error)
	w = s.do(t, http.MethodPost, "/api/automations/1/reactivate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var a models.Automation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, models.AutomationStateActive, a.State)
}

func TestAutomationRoutes_NotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/automations/42", "/api/automations/42/runs"} {
		w := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/automations/42/run", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/automations/42/reactivate", nil).Code)

	for _, id := range []string{"abc", "0", "-1"} {
		w := s.do(t, http.MethodGet, "/api/automations/"+id, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
}

func TestAutomationRoutes_UnwiredServiceIsSkipped(t *testing.T) {
	s := newTestServer(t)
	a := &models.Automation{
		Name:            "recap",
		BotID:           1,
		ServiceName:     "github_repo_recap",
		Action:          "create_draft",
		ActionConfig:    datatypes.JSONMap{"repo_name": "forem/forem"},
		Frequency:       "hourly",
		FrequencyConfig: datatypes.JSONMap{"minute": 5},
		State:           models.AutomationStateActive,
		NextRunAt:       time.Now().UTC(),
	}
	require.NoError(t, s.db.Create(a).Error)

	w := s.do(t, http.MethodPost, "/api/automations/1/run", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Service github_repo_recap is not configured")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Services["database"].Status)
	// default config carries no AI key
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "not_configured", body.Services["ai"].Status)

	w = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_NoDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(config.GetDefaultConfig(), nil, nil)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}
