package services

import (
	"context"
	"time"

	"automations/internal/models"
	"automations/internal/store"
	"automations/pkg/recap"
)

// Oracle is the AI-backed qualification service consulted before awarding.
type Oracle interface {
	Qualifies(ctx context.Context, content, criteria string) (bool, error)
	Helpful(ctx context.Context, comment string) (bool, error)
	Spam(ctx context.Context, content string) (bool, error)
}

// Generator produces a content draft for a repository over a lookback
// window. A nil content with a nil error means there is nothing to write.
type Generator interface {
	Generate(ctx context.Context, repo string, since time.Time) (*recap.Content, error)
}

// Recurrence computes the next run time of a frequency descriptor.
type Recurrence interface {
	Next(frequency string, config map[string]interface{}, base time.Time) (time.Time, error)
}

// Strategy implements one (service, action) family. A returned error is a
// runtime failure; configuration problems come back as a failed Result.
type Strategy interface {
	Call(ctx context.Context, automation *models.Automation) (Result, error)
}

// AutomationStore is the persistence the Executor needs.
type AutomationStore interface {
	TryStartRun(ctx context.Context, id uint, now time.Time) (bool, error)
	FinishRun(ctx context.Context, id uint, upd store.RunUpdate, now time.Time) error
	RecordRun(ctx context.Context, run *models.AutomationRun) error
	GetAutomation(ctx context.Context, id uint) (*models.Automation, error)
}

// BadgeStore is the persistence the badge strategies need.
type BadgeStore interface {
	FindOrganization(ctx context.Context, id uint) (*models.Organization, error)
	FindBadgeBySlug(ctx context.Context, slug string) (*models.Badge, error)
	PublishedArticles(ctx context.Context, f store.ArticleFilter) ([]models.Article, error)
	HasEarlierOrgArticle(ctx context.Context, userID, orgID uint, before time.Time) (bool, error)
	CurrentWelcomeThread(ctx context.Context, tag string, now time.Time) (*models.Article, error)
	CommentsOn(ctx context.Context, f store.CommentFilter) ([]models.Comment, error)
	GetArticle(ctx context.Context, id uint) (*models.Article, error)
	HasAchievement(ctx context.Context, userID, badgeID uint, since *time.Time) (bool, error)
	AwardAchievement(ctx context.Context, ach *models.BadgeAchievement, since *time.Time) (bool, error)
}

// ArticleStore is the persistence the content strategy needs.
type ArticleStore interface {
	FindOrganization(ctx context.Context, id uint) (*models.Organization, error)
	CreateArticle(ctx context.Context, a *models.Article) error
}

var (
	_ AutomationStore      = (*store.Store)(nil)
	_ AutomationAdminStore = (*store.Store)(nil)
	_ BadgeStore           = (*store.Store)(nil)
	_ ArticleStore         = (*store.Store)(nil)
	_ DueLister            = (*store.Store)(nil)
	_ Runner               = (*Executor)(nil)
)
