package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"automations/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

var (
	// ErrInvalidAutomation wraps every validation failure of Create.
	ErrInvalidAutomation = errors.New("invalid automation")
	// ErrNotFailed is returned by Reactivate for automations not in failed state.
	ErrNotFailed = errors.New("automation is not in failed state")
)

// AutomationAdminStore is the persistence the admin service needs.
type AutomationAdminStore interface {
	GetAutomation(ctx context.Context, id uint) (*models.Automation, error)
	ListAutomations(ctx context.Context) ([]models.Automation, error)
	CreateAutomation(ctx context.Context, a *models.Automation) error
	ListRuns(ctx context.Context, automationID uint, limit int) ([]models.AutomationRun, error)
	Reactivate(ctx context.Context, id uint, nextRunAt, now time.Time) (bool, error)
}

// AutomationRequest 创建自动化任务的请求
type AutomationRequest struct {
	Name                   string                 `json:"name" binding:"required"`
	BotID                  uint                   `json:"bot_id" binding:"required"`
	ServiceName            string                 `json:"service_name" binding:"required"`
	Action                 string                 `json:"action" binding:"required"`
	ActionConfig           map[string]interface{} `json:"action_config"`
	Frequency              string                 `json:"frequency" binding:"required"`
	FrequencyConfig        map[string]interface{} `json:"frequency_config"`
	AdditionalInstructions string                 `json:"additional_instructions"`
}

// AutomationService manages automation records and manual runs.
type AutomationService struct {
	store      AutomationAdminStore
	recurrence Recurrence
	executor   *Executor
	logger     *logrus.Logger
	now        func() time.Time
}

func NewAutomationService(st AutomationAdminStore, rec Recurrence, executor *Executor, logger *logrus.Logger) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationService{
		store:      st,
		recurrence: rec,
		executor:   executor,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the service/action pair and frequency, then stores the
// automation as active with its first next_run_at.
func (s *AutomationService) Create(ctx context.Context, req *AutomationRequest) (*models.Automation, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request required", ErrInvalidAutomation)
	}
	name, ok := ParseServiceName(req.ServiceName)
	if !ok {
		return nil, fmt.Errorf("%w: Unknown service: %s", ErrInvalidAutomation, req.ServiceName)
	}
	action := strings.TrimSpace(req.Action)
	if !name.SupportsAction(action) {
		return nil, fmt.Errorf("%w: action %q not supported by %s (want one of %s)",
			ErrInvalidAutomation, action, name, strings.Join(name.Actions(), ", "))
	}
	freq := strings.TrimSpace(req.Frequency)
	next, err := s.recurrence.Next(freq, req.FrequencyConfig, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAutomation, err)
	}

	a := &models.Automation{
		Name:                   strings.TrimSpace(req.Name),
		BotID:                  req.BotID,
		ServiceName:            string(name),
		Action:                 action,
		ActionConfig:           datatypes.JSONMap(req.ActionConfig),
		Frequency:              freq,
		FrequencyConfig:        datatypes.JSONMap(req.FrequencyConfig),
		State:                  models.AutomationStateActive,
		NextRunAt:              next,
		AdditionalInstructions: req.AdditionalInstructions,
	}
	if err := s.store.CreateAutomation(ctx, a); err != nil {
		return nil, fmt.Errorf("create automation: %w", err)
	}
	s.logger.Infof("automation: created %d (%s/%s), next run %s", a.ID, a.ServiceName, a.Action, next.Format(time.RFC3339))
	return a, nil
}

func (s *AutomationService) List(ctx context.Context) ([]models.Automation, error) {
	return s.store.ListAutomations(ctx)
}

func (s *AutomationService) Get(ctx context.Context, id uint) (*models.Automation, error) {
	return s.store.GetAutomation(ctx, id)
}

func (s *AutomationService) ListRuns(ctx context.Context, id uint, limit int) ([]models.AutomationRun, error) {
	if _, err := s.store.GetAutomation(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListRuns(ctx, id, limit)
}

// Reactivate returns a failed automation to active and schedules it from now.
func (s *AutomationService) Reactivate(ctx context.Context, id uint) (*models.Automation, error) {
	a, err := s.store.GetAutomation(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	next, err := s.recurrence.Next(a.Frequency, a.FrequencyConfig, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAutomation, err)
	}
	ok, err := s.store.Reactivate(ctx, id, next, now)
	if err != nil {
		return nil, fmt.Errorf("reactivate automation %d: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFailed
	}
	s.logger.Infof("automation: reactivated %d, next run %s", id, next.Format(time.RFC3339))
	return s.store.GetAutomation(ctx, id)
}

// RunNow executes the automation immediately, outside its schedule.
func (s *AutomationService) RunNow(ctx context.Context, id uint) (Result, error) {
	if s.executor == nil {
		return Result{}, errors.New("executor not configured")
	}
	return s.executor.RunByID(ctx, id)
}
