package services

import (
	"context"
	"fmt"
	"time"

	"automations/internal/models"
	"automations/internal/store"
	"automations/pkg/utils"

	"github.com/sirupsen/logrus"
)

// ArticleContentCooldown is the re-award cooldown for content badges.
const ArticleContentCooldown = 156 * time.Hour // 6.5 days

// DefaultContentCriteria is used when action_config carries no criteria.
const DefaultContentCriteria = "a well-written, original article that teaches the reader something useful"

type articleContentConfig struct {
	BadgeSlug     string   `json:"badge_slug" validate:"required"`
	Keywords      []string `json:"keywords"`
	Criteria      string   `json:"criteria"`
	LookbackHours int      `json:"lookback_hours" validate:"gte=0"`
	MinimumScore  *int     `json:"minimum_score"`
}

// ArticleContentBadge awards a badge for indexable articles matching
// keywords that the oracle judges to meet the criteria.
type ArticleContentBadge struct {
	badgeAwarder
	minimumScore int
}

// NewArticleContentBadge builds the strategy; minimumScore is the indexable
// floor, overridable per automation with minimum_score.
func NewArticleContentBadge(st BadgeStore, oracle Oracle, logger *logrus.Logger, minimumScore int, opts ...BadgeOption) *ArticleContentBadge {
	s := &ArticleContentBadge{
		badgeAwarder: newBadgeAwarder(st, oracle, logger, awardPolicy{
			Buffer:   DefaultLookbackBuffer,
			Cooldown: ArticleContentCooldown,
		}),
		minimumScore: minimumScore,
	}
	s.apply(opts)
	return s
}

func (s *ArticleContentBadge) Call(ctx context.Context, a *models.Automation) (Result, error) {
	return finish(s.run(ctx, a))
}

func (s *ArticleContentBadge) run(ctx context.Context, a *models.Automation) (int, error) {
	var cfg articleContentConfig
	if err := decodeActionConfig(a.ActionConfig, &cfg, " in action_config"); err != nil {
		return 0, err
	}
	badge, err := s.findBadge(ctx, cfg.BadgeSlug)
	if err != nil {
		return 0, err
	}

	now := s.now()
	from := s.windowStart(a.LastRunAt)
	if cfg.LookbackHours > 0 {
		bound := now.Add(-time.Duration(cfg.LookbackHours) * time.Hour)
		if from.Before(bound) {
			from = bound
		}
	}
	minScore := s.minimumScore
	if cfg.MinimumScore != nil {
		minScore = *cfg.MinimumScore
	}
	criteria := cfg.Criteria
	if criteria == "" {
		criteria = DefaultContentCriteria
	}
	keywords := cleanKeywords(cfg.Keywords)

	articles, err := s.store.PublishedArticles(ctx, store.ArticleFilter{
		From:            from,
		To:              now,
		MinScore:        &minScore,
		ExcludeBanished: true,
	})
	if err != nil {
		return 0, fmt.Errorf("load articles: %w", err)
	}

	cands := make([]candidate, 0, len(articles))
	for _, art := range articles {
		if !utils.ContainsAnyFold(keywords, art.Title, art.BodyMarkdown, art.CachedTagList) {
			continue
		}
		cands = append(cands, candidate{
			UserID:  art.UserID,
			At:      *art.PublishedAt,
			ID:      art.ID,
			Content: art.Title + "\n\n" + art.BodyMarkdown,
			Message: fmt.Sprintf("Awarded for your article \"%s\"", art.Title),
		})
	}
	s.logger.WithField("automation_id", a.ID).Debugf("article content: %d candidates from %d articles", len(cands), len(articles))

	return s.award(ctx, a, badge, cands, func(ctx context.Context, c candidate) (bool, error) {
		ok, err := s.notSpam(ctx, c.Content)
		if err != nil || !ok {
			return false, err
		}
		ok, err = s.oracle.Qualifies(ctx, c.Content, criteria)
		if err != nil {
			return false, fmt.Errorf("qualification check: %w", err)
		}
		return ok, nil
	})
}
