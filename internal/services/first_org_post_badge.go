package services

import (
	"context"
	"fmt"
	"time"

	"automations/internal/models"
	"automations/internal/store"

	"github.com/sirupsen/logrus"
)

// FirstOrgPostCooldown applies when the first-post badge allows repeats.
const FirstOrgPostCooldown = 7 * 24 * time.Hour

type firstOrgPostConfig struct {
	BadgeSlug      string `json:"badge_slug" validate:"required"`
	OrganizationID uint   `json:"organization_id" validate:"required"`
}

// FirstOrgPostBadge awards a badge to users publishing their first article
// under an organization.
type FirstOrgPostBadge struct {
	badgeAwarder
}

func NewFirstOrgPostBadge(st BadgeStore, oracle Oracle, logger *logrus.Logger, opts ...BadgeOption) *FirstOrgPostBadge {
	s := &FirstOrgPostBadge{
		badgeAwarder: newBadgeAwarder(st, oracle, logger, awardPolicy{
			Buffer:   DefaultLookbackBuffer,
			Cooldown: FirstOrgPostCooldown,
		}),
	}
	s.apply(opts)
	return s
}

func (s *FirstOrgPostBadge) Call(ctx context.Context, a *models.Automation) (Result, error) {
	return finish(s.run(ctx, a))
}

func (s *FirstOrgPostBadge) run(ctx context.Context, a *models.Automation) (int, error) {
	var cfg firstOrgPostConfig
	if err := decodeActionConfig(a.ActionConfig, &cfg, " in action_config"); err != nil {
		return 0, err
	}
	org, err := s.store.FindOrganization(ctx, cfg.OrganizationID)
	if err != nil {
		return 0, fmt.Errorf("find organization %d: %w", cfg.OrganizationID, err)
	}
	if org == nil {
		return 0, &ConfigError{
			Field: "organization_id",
			Msg:   fmt.Sprintf("Organization with id '%d' not found", cfg.OrganizationID),
		}
	}
	badge, err := s.findBadge(ctx, cfg.BadgeSlug)
	if err != nil {
		return 0, err
	}

	orgID := org.ID
	articles, err := s.store.PublishedArticles(ctx, store.ArticleFilter{
		OrganizationID:  &orgID,
		From:            s.windowStart(a.LastRunAt),
		To:              s.now(),
		ExcludeBanished: true,
	})
	if err != nil {
		return 0, fmt.Errorf("load organization articles: %w", err)
	}

	cands := make([]candidate, 0, len(articles))
	for _, art := range articles {
		cands = append(cands, candidate{
			UserID:  art.UserID,
			At:      *art.PublishedAt,
			ID:      art.ID,
			Content: art.Title + "\n\n" + art.BodyMarkdown,
			Message: fmt.Sprintf("Congrats on publishing your first post with %s: \"%s\"", org.Name, art.Title),
		})
	}

	return s.award(ctx, a, badge, cands, func(ctx context.Context, c candidate) (bool, error) {
		// 窗口外的更早文章同样算作"已发过"
		earlier, err := s.store.HasEarlierOrgArticle(ctx, c.UserID, orgID, c.At)
		if err != nil {
			return false, fmt.Errorf("check earlier posts for user %d: %w", c.UserID, err)
		}
		if earlier {
			return false, nil
		}
		return s.notSpam(ctx, c.Content)
	})
}
