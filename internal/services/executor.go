package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"automations/internal/metrics"
	"automations/internal/models"
	"automations/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// MsgAlreadyRunning is returned when the running guard rejects a call.
const MsgAlreadyRunning = "Automation is already running"

// ClassConfigurationError marks runs that could not be scheduled at all.
const ClassConfigurationError = "ConfigurationError"

// Strategies holds one implementation per known service. A nil field means
// the service is not wired in this process.
type Strategies struct {
	GitHubRepoRecap     Strategy
	FirstOrgPostBadge   Strategy
	ArticleContentBadge Strategy
	WarmWelcomeBadge    Strategy
}

// Executor runs a single automation: it takes the running guard,
// dispatches to the strategy and commits the terminal state.
type Executor struct {
	store      AutomationStore
	recurrence Recurrence
	strategies Strategies
	logger     *logrus.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newRunID   func() string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = t
	}
}

func NewExecutor(st AutomationStore, rec Recurrence, strategies Strategies, logger *logrus.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Executor{
		store:      st,
		recurrence: rec,
		strategies: strategies,
		logger:     logger,
		tracer:     otel.Tracer("automations/services"),
		now:        func() time.Time { return time.Now().UTC() },
		newRunID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunByID loads the automation and calls it.
func (e *Executor) RunByID(ctx context.Context, id uint) (Result, error) {
	a, err := e.store.GetAutomation(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return e.Call(ctx, a), nil
}

// Call executes one run of the automation.
func (e *Executor) Call(ctx context.Context, a *models.Automation) Result {
	if a == nil {
		return FailureResult("automation is required")
	}
	log := e.logger.WithFields(logrus.Fields{
		"automation_id": a.ID,
		"service":       a.ServiceName,
		"action":        a.Action,
	})

	if a.State == models.AutomationStateRunning {
		log.Warn("automation: already running, skipped")
		return FailureResult(MsgAlreadyRunning)
	}

	startedAt := e.now()
	acquired, err := e.store.TryStartRun(ctx, a.ID, startedAt)
	if err != nil {
		log.Errorf("automation: acquire run guard failed: %v", err)
		return FailureResult(FormatError(err))
	}
	if !acquired {
		if _, gerr := e.store.GetAutomation(ctx, a.ID); errors.Is(gerr, gorm.ErrRecordNotFound) {
			return FailureResult(fmt.Sprintf("Automation %d not found", a.ID))
		}
		log.Warn("automation: already running, skipped")
		return FailureResult(MsgAlreadyRunning)
	}
	a.State = models.AutomationStateRunning

	runID := e.newRunID()
	log = log.WithField("run_id", runID)
	ctx, span := e.tracer.Start(ctx, "automation.run", trace.WithAttributes(
		attribute.Int("automation.id", int(a.ID)),
		attribute.String("automation.service", a.ServiceName),
		attribute.String("automation.action", a.Action),
		attribute.String("automation.run_id", runID),
	))
	defer span.End()

	// 终态写入不受调用方取消影响，避免停留在 running
	finishCtx := context.WithoutCancel(ctx)

	var (
		result Result
		upd    store.RunUpdate
		status string
	)
	if ferr := e.checkFrequency(a); ferr != nil {
		msg := FormatError(ferr)
		log.Errorf("automation: %s", msg)
		result = FailureResult(msg)
		upd = store.RunUpdate{State: models.AutomationStateFailed}
		status = models.RunStatusFailed
	} else {
		result, upd, status = e.execute(ctx, a, log)
	}

	finishedAt := e.now()
	if err := e.store.FinishRun(finishCtx, a.ID, upd, finishedAt); err != nil {
		log.Errorf("automation: persist terminal state %s failed: %v", upd.State, err)
	} else {
		a.State = upd.State
		if upd.LastRunAt != nil {
			a.LastRunAt = upd.LastRunAt
		}
		if upd.NextRunAt != nil {
			a.NextRunAt = *upd.NextRunAt
		}
	}

	e.recordRun(finishCtx, log, a, runID, status, result, startedAt, finishedAt)
	metrics.RecordRun(a.ServiceName, status, result.UsersAwarded, result.Article != nil)

	if result.Failed() {
		span.SetStatus(codes.Error, result.ErrorMessage)
	}
	span.SetAttributes(
		attribute.String("automation.status", status),
		attribute.Int("automation.users_awarded", result.UsersAwarded),
	)
	return result
}

// execute dispatches and decides the terminal state for each outcome.
func (e *Executor) execute(ctx context.Context, a *models.Automation, log *logrus.Entry) (Result, store.RunUpdate, string) {
	result, err := e.dispatch(ctx, a)

	if err != nil {
		msg := FormatError(err)
		log.WithField("error_class", ErrorClass(err)).Errorf("automation: run failed: %v", err)
		trace.SpanFromContext(ctx).RecordError(err)
		return FailureResult(msg), store.RunUpdate{State: models.AutomationStateFailed}, models.RunStatusFailed
	}

	now := e.now()
	next, nerr := e.recurrence.Next(a.Frequency, a.FrequencyConfig, now)
	if nerr != nil {
		// frequency was checked before dispatch; treat a late failure like any runtime error
		msg := FormatError(&RunError{Class: ClassConfigurationError, Err: nerr})
		log.Errorf("automation: compute next run failed: %v", nerr)
		return FailureResult(msg), store.RunUpdate{State: models.AutomationStateFailed}, models.RunStatusFailed
	}

	if result.Failed() {
		// 配置问题：保持 active，等下一个周期（人工修正配置后自动生效）
		log.Warnf("automation: skipped: %s", result.ErrorMessage)
		return FailureResult(result.ErrorMessage),
			store.RunUpdate{State: models.AutomationStateActive, NextRunAt: &next},
			models.RunStatusSkipped
	}

	switch {
	case result.Article != nil:
		log.Infof("automation: created article %d (published=%t)", result.Article.ID, result.Article.Published)
	case result.UsersAwarded > 0:
		log.Infof("automation: awarded %d users", result.UsersAwarded)
	default:
		log.Info("automation: completed with nothing to do")
	}
	return result,
		store.RunUpdate{State: models.AutomationStateActive, LastRunAt: &now, NextRunAt: &next},
		models.RunStatusSuccess
}

func (e *Executor) dispatch(ctx context.Context, a *models.Automation) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = panicError(r)
		}
	}()

	name, ok := ParseServiceName(a.ServiceName)
	if !ok {
		return FailureResult("Unknown service: " + a.ServiceName), nil
	}
	if !name.SupportsAction(a.Action) {
		return FailureResult(fmt.Sprintf("Unknown action '%s' for service %s", a.Action, name)), nil
	}
	strategy := e.strategyFor(name)
	if strategy == nil {
		return FailureResult(fmt.Sprintf("Service %s is not configured", name)), nil
	}
	return strategy.Call(ctx, a)
}

func (e *Executor) strategyFor(name ServiceName) Strategy {
	switch name {
	case ServiceGitHubRepoRecap:
		return e.strategies.GitHubRepoRecap
	case ServiceFirstOrgPostBadge:
		return e.strategies.FirstOrgPostBadge
	case ServiceArticleContentBadge:
		return e.strategies.ArticleContentBadge
	case ServiceWarmWelcomeBadge:
		return e.strategies.WarmWelcomeBadge
	default:
		return nil
	}
}

func (e *Executor) checkFrequency(a *models.Automation) error {
	if _, err := e.recurrence.Next(a.Frequency, a.FrequencyConfig, e.now()); err != nil {
		return &RunError{Class: ClassConfigurationError, Err: err}
	}
	return nil
}

func (e *Executor) recordRun(ctx context.Context, log *logrus.Entry, a *models.Automation, runID, status string, result Result, startedAt, finishedAt time.Time) {
	run := &models.AutomationRun{
		RunID:        runID,
		AutomationID: a.ID,
		Status:       status,
		Message:      result.ErrorMessage,
		UsersAwarded: result.UsersAwarded,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		CreatedAt:    finishedAt,
	}
	if result.Article != nil {
		id := result.Article.ID
		run.ArticleID = &id
	}
	if err := e.store.RecordRun(ctx, run); err != nil {
		log.Warnf("automation: record run failed: %v", err)
	}
}
