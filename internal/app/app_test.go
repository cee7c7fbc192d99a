package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"automations/internal/config"
	"automations/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:app_"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := config.GetDefaultConfig()
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	a := New(cfg, db, log)
	require.NoError(t, a.Store.AutoMigrate(context.Background()))
	return a
}

func seedWelcome(t *testing.T, a *App) *models.Automation {
	t.Helper()
	au := &models.Automation{
		Name:            "welcome",
		BotID:           1,
		ServiceName:     "warm_welcome_badge",
		Action:          "award_badge",
		ActionConfig:    datatypes.JSONMap{},
		Frequency:       "daily",
		FrequencyConfig: datatypes.JSONMap{"hour": 9, "minute": 0},
		State:           models.AutomationStateActive,
		NextRunAt:       time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, a.Store.CreateAutomation(context.Background(), au))
	return au
}

func TestNew_WithoutAIKeyLeavesStrategiesUnwired(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.AI.APIKey = "" })
	au := seedWelcome(t, a)

	res, err := a.Service.RunNow(context.Background(), au.ID)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Service warm_welcome_badge is not configured", res.ErrorMessage)
}

func TestNew_WiresStrategies(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.AI.APIKey = "sk-test" })
	au := seedWelcome(t, a)

	res, err := a.Service.RunNow(context.Background(), au.ID)

	require.NoError(t, err)
	// reaches the strategy, which rejects the empty config before any AI call
	assert.Equal(t, "badge_slug is required in action_config", res.ErrorMessage)
}

func TestNew_RouterServesHealth(t *testing.T) {
	a := newTestApp(t, nil)

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) {
		c.Server.Enabled = false
		c.Scheduler.Enabled = true
		c.Scheduler.TickInterval = 10 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
