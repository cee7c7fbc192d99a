package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"automations/internal/models"

	"github.com/sirupsen/logrus"
)

// DefaultLookbackBuffer is subtracted from last_run_at when opening the
// candidate window, to absorb scheduling jitter.
const DefaultLookbackBuffer = 15 * time.Minute

// awardPolicy carries the per-strategy timing constants.
type awardPolicy struct {
	Buffer   time.Duration
	Cooldown time.Duration
}

// candidate is one piece of content that may earn its author a badge.
type candidate struct {
	UserID  uint
	At      time.Time
	ID      uint
	Content string
	Message string
}

// qualifyFunc asks the oracle whether a candidate deserves the badge.
type qualifyFunc func(ctx context.Context, c candidate) (bool, error)

// badgeAwarder is the skeleton shared by all badge strategies: window,
// earliest candidate per user, idempotency, qualification, award.
type badgeAwarder struct {
	store  BadgeStore
	oracle Oracle
	logger *logrus.Logger
	now    func() time.Time
	policy awardPolicy
}

func newBadgeAwarder(st BadgeStore, oracle Oracle, logger *logrus.Logger, policy awardPolicy) badgeAwarder {
	if logger == nil {
		logger = logrus.New()
	}
	return badgeAwarder{
		store:  st,
		oracle: oracle,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		policy: policy,
	}
}

// windowStart returns the inclusive lower bound for candidates. A zero time
// means the window is unbounded (first run).
func (b *badgeAwarder) windowStart(lastRunAt *time.Time) time.Time {
	if lastRunAt == nil {
		return time.Time{}
	}
	return lastRunAt.UTC().Add(-b.policy.Buffer)
}

// BadgeOption configures a badge strategy.
type BadgeOption func(*badgeAwarder)

// WithBadgeClock overrides the time source of a badge strategy.
func WithBadgeClock(now func() time.Time) BadgeOption {
	return func(b *badgeAwarder) {
		b.now = now
	}
}

// WithPolicy overrides the lookback buffer and cooldown.
func WithPolicy(buffer, cooldown time.Duration) BadgeOption {
	return func(b *badgeAwarder) {
		b.policy = awardPolicy{Buffer: buffer, Cooldown: cooldown}
	}
}

func (b *badgeAwarder) apply(opts []BadgeOption) {
	for _, opt := range opts {
		opt(b)
	}
}

// findBadge loads the badge named by the action_config.
func (b *badgeAwarder) findBadge(ctx context.Context, slug string) (*models.Badge, error) {
	badge, err := b.store.FindBadgeBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("find badge %q: %w", slug, err)
	}
	if badge == nil {
		return nil, &ConfigError{Field: "badge_slug", Msg: fmt.Sprintf("Badge with slug '%s' not found", slug)}
	}
	return badge, nil
}

// earliestPerUser keeps each author's earliest candidate, ordered by time
// then id. The result is ordered the same way.
func earliestPerUser(cands []candidate) []candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].At.Equal(sorted[j].At) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].At.Before(sorted[j].At)
	})

	seen := make(map[uint]struct{}, len(sorted))
	out := make([]candidate, 0, len(sorted))
	for _, c := range sorted {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// cooldownSince is the lower bound for the idempotency check: nil for
// single-award badges (any achievement blocks), now-cooldown otherwise.
func (b *badgeAwarder) cooldownSince(badge *models.Badge, now time.Time) *time.Time {
	if !badge.AllowMultipleAwards {
		return nil
	}
	since := now.Add(-b.policy.Cooldown)
	return &since
}

// award runs the per-user pipeline and returns how many users were awarded.
func (b *badgeAwarder) award(ctx context.Context, a *models.Automation, badge *models.Badge, cands []candidate, qualify qualifyFunc) (int, error) {
	now := b.now()
	since := b.cooldownSince(badge, now)
	log := b.logger.WithFields(logrus.Fields{
		"automation_id": a.ID,
		"badge":         badge.Slug,
	})

	awarded := 0
	for _, c := range earliestPerUser(cands) {
		held, err := b.store.HasAchievement(ctx, c.UserID, badge.ID, since)
		if err != nil {
			return awarded, fmt.Errorf("check achievement for user %d: %w", c.UserID, err)
		}
		if held {
			log.Debugf("user %d already holds badge, skipped", c.UserID)
			continue
		}

		ok, err := qualify(ctx, c)
		if err != nil {
			return awarded, err
		}
		if !ok {
			log.Debugf("user %d did not qualify", c.UserID)
			continue
		}

		ach := &models.BadgeAchievement{
			UserID:                  c.UserID,
			BadgeID:                 badge.ID,
			RewardingContextMessage: c.Message,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if a.BotID != 0 {
			botID := a.BotID
			ach.RewarderID = &botID
		}
		created, err := b.store.AwardAchievement(ctx, ach, since)
		if err != nil {
			return awarded, err
		}
		if created {
			awarded++
		}
	}
	return awarded, nil
}

// notSpam is the qualification step every strategy starts with.
func (b *badgeAwarder) notSpam(ctx context.Context, content string) (bool, error) {
	spam, err := b.oracle.Spam(ctx, content)
	if err != nil {
		return false, fmt.Errorf("spam check: %w", err)
	}
	return !spam, nil
}

// finish converts a strategy outcome into a Result. Config errors become a
// failure Result; anything else is returned for the Executor to handle.
func finish(awarded int, err error) (Result, error) {
	if err == nil {
		return AwardResult(awarded), nil
	}
	var cerr *ConfigError
	if errors.As(err, &cerr) {
		return FailureResult(cerr.Msg), nil
	}
	return Result{}, err
}
