package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"automations/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DueLister selects automations ready to run.
type DueLister interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Automation, error)
}

// Runner executes one automation.
type Runner interface {
	Call(ctx context.Context, a *models.Automation) Result
}

// DispatcherConfig 调度轮询参数
type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

// TickSummary reports what one poll did.
type TickSummary struct {
	Due             int `json:"due"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	UsersAwarded    int `json:"users_awarded"`
	ArticlesCreated int `json:"articles_created"`
}

// Dispatcher polls for due automations and hands each to the Executor.
type Dispatcher struct {
	store  DueLister
	runner Runner
	cfg    DispatcherConfig
	logger *logrus.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewDispatcher(st DueLister, runner Runner, cfg DispatcherConfig, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		store:  st,
		runner: runner,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Tick runs every automation due now, at most Concurrency at a time.
func (d *Dispatcher) Tick(ctx context.Context) (TickSummary, error) {
	due, err := d.store.ListDue(ctx, d.now(), d.cfg.BatchSize)
	if err != nil {
		return TickSummary{}, fmt.Errorf("list due automations: %w", err)
	}
	summary := TickSummary{Due: len(due)}
	if len(due) == 0 {
		return summary, nil
	}
	d.logger.Infof("dispatcher: %d automations due", len(due))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for i := range due {
		a := &due[i]
		g.Go(func() error {
			// 单个任务失败不影响其它任务
			res := d.runner.Call(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				summary.Succeeded++
				summary.UsersAwarded += res.UsersAwarded
				if res.Article != nil {
					summary.ArticlesCreated++
				}
			} else {
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Infof("dispatcher: tick done, %d succeeded, %d failed", summary.Succeeded, summary.Failed)
	return summary, nil
}

// Start polls until ctx is cancelled or Stop is called. It ticks once
// immediately.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	d.logger.Infof("dispatcher: started, interval %s", d.cfg.Interval)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.Tick(ctx); err != nil {
			d.logger.Errorf("dispatcher: %v", err)
		}
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends a running Start loop.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}
