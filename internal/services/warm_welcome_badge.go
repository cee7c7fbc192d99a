package services

import (
	"context"
	"fmt"
	"time"

	"automations/internal/models"
	"automations/internal/store"

	"github.com/sirupsen/logrus"
)

// WarmWelcomeCooldown is the re-award cooldown for welcome badges.
const WarmWelcomeCooldown = 7 * 24 * time.Hour

// DefaultWelcomeTag marks the current welcome thread.
const DefaultWelcomeTag = "welcome"

type warmWelcomeConfig struct {
	BadgeSlug        string `json:"badge_slug" validate:"required"`
	WelcomeArticleID uint   `json:"welcome_article_id"`
}

// WarmWelcomeBadge awards a badge for helpful comments on the welcome thread.
type WarmWelcomeBadge struct {
	badgeAwarder
	tag string
}

func NewWarmWelcomeBadge(st BadgeStore, oracle Oracle, logger *logrus.Logger, tag string, opts ...BadgeOption) *WarmWelcomeBadge {
	if tag == "" {
		tag = DefaultWelcomeTag
	}
	s := &WarmWelcomeBadge{
		badgeAwarder: newBadgeAwarder(st, oracle, logger, awardPolicy{
			Buffer:   DefaultLookbackBuffer,
			Cooldown: WarmWelcomeCooldown,
		}),
		tag: tag,
	}
	s.apply(opts)
	return s
}

func (s *WarmWelcomeBadge) Call(ctx context.Context, a *models.Automation) (Result, error) {
	return finish(s.run(ctx, a))
}

func (s *WarmWelcomeBadge) run(ctx context.Context, a *models.Automation) (int, error) {
	var cfg warmWelcomeConfig
	if err := decodeActionConfig(a.ActionConfig, &cfg, " in action_config"); err != nil {
		return 0, err
	}
	badge, err := s.findBadge(ctx, cfg.BadgeSlug)
	if err != nil {
		return 0, err
	}

	now := s.now()
	thread, err := s.thread(ctx, cfg, now)
	if err != nil {
		return 0, err
	}
	if thread == nil {
		s.logger.WithField("automation_id", a.ID).Info("warm welcome: no welcome thread, nothing to do")
		return 0, nil
	}

	comments, err := s.store.CommentsOn(ctx, store.CommentFilter{
		ArticleID:       thread.ID,
		From:            s.windowStart(a.LastRunAt),
		To:              now,
		ExcludeBanished: true,
	})
	if err != nil {
		return 0, fmt.Errorf("load welcome comments: %w", err)
	}

	cands := make([]candidate, 0, len(comments))
	for _, c := range comments {
		// 帖子作者自己的回复不计
		if c.UserID == thread.UserID {
			continue
		}
		cands = append(cands, candidate{
			UserID:  c.UserID,
			At:      c.CreatedAt,
			ID:      c.ID,
			Content: c.Body,
			Message: fmt.Sprintf("Thanks for making newcomers feel welcome in \"%s\"", thread.Title),
		})
	}

	return s.award(ctx, a, badge, cands, func(ctx context.Context, c candidate) (bool, error) {
		ok, err := s.notSpam(ctx, c.Content)
		if err != nil || !ok {
			return false, err
		}
		ok, err = s.oracle.Helpful(ctx, c.Content)
		if err != nil {
			return false, fmt.Errorf("helpfulness check: %w", err)
		}
		return ok, nil
	})
}

func (s *WarmWelcomeBadge) thread(ctx context.Context, cfg warmWelcomeConfig, now time.Time) (*models.Article, error) {
	if cfg.WelcomeArticleID == 0 {
		thread, err := s.store.CurrentWelcomeThread(ctx, s.tag, now)
		if err != nil {
			return nil, fmt.Errorf("find welcome thread: %w", err)
		}
		return thread, nil
	}
	thread, err := s.store.GetArticle(ctx, cfg.WelcomeArticleID)
	if err != nil {
		return nil, fmt.Errorf("load welcome article %d: %w", cfg.WelcomeArticleID, err)
	}
	if thread == nil {
		return nil, &ConfigError{
			Field: "welcome_article_id",
			Msg:   fmt.Sprintf("Article with id '%d' not found", cfg.WelcomeArticleID),
		}
	}
	return thread, nil
}
