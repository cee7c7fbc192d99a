package store

import (
	"context"
	"fmt"

	"automations/internal/models"
)

// 复合索引：调度轮询与候选查询
var indexStatements = []string{
	"CREATE INDEX IF NOT EXISTS idx_automations_state_next_run ON automations(state, next_run_at)",
	"CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published, published_at)",
	"CREATE INDEX IF NOT EXISTS idx_articles_user_org ON articles(user_id, organization_id)",
	"CREATE INDEX IF NOT EXISTS idx_comments_article_created ON comments(article_id, created_at)",
	"CREATE INDEX IF NOT EXISTS idx_automation_runs_automation ON automation_runs(automation_id, id)",
}

// EnsureIndexes creates the composite indexes AutoMigrate does not declare.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, stmt := range indexStatements {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// DefaultBadges are the badges the awarders are usually configured with.
func DefaultBadges() []models.Badge {
	return []models.Badge{
		{Title: "First Org Post", Slug: "first-org-post", Description: "Published a first article under an organization"},
		{Title: "Quality Content", Slug: "quality-content", Description: "Wrote an article that stood out", AllowMultipleAwards: true},
		{Title: "Warm Welcome", Slug: "warm-welcome", Description: "Greeted newcomers in the welcome thread", AllowMultipleAwards: true},
	}
}

// SeedBadges inserts badges whose slug is not taken yet and returns the
// slugs it created.
func (s *Store) SeedBadges(ctx context.Context, badges []models.Badge) ([]string, error) {
	var created []string
	for _, b := range badges {
		existing, err := s.FindBadgeBySlug(ctx, b.Slug)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		badge := b
		if err := s.db.WithContext(ctx).Create(&badge).Error; err != nil {
			return created, fmt.Errorf("seed badge %s: %w", badge.Slug, err)
		}
		created = append(created, badge.Slug)
	}
	return created, nil
}
