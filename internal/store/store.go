// Package store is the gorm-backed persistence layer for automations and
// the community entities they read or create.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"automations/internal/models"
	"automations/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a *gorm.DB. All times are written and compared in UTC.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AllModels lists every table owned or read by the engine.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Organization{},
		&models.Article{},
		&models.Comment{},
		&models.Badge{},
		&models.BadgeAchievement{},
		&models.Automation{},
		&models.AutomationRun{},
	}
}

// AutoMigrate creates or updates all tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(AllModels()...)
}

// ---- automations ----

func (s *Store) GetAutomation(ctx context.Context, id uint) (*models.Automation, error) {
	var a models.Automation
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAutomations(ctx context.Context) ([]models.Automation, error) {
	var list []models.Automation
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) CreateAutomation(ctx context.Context, a *models.Automation) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// ListDue returns active automations whose next_run_at has passed, oldest first.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Automation, error) {
	q := s.db.WithContext(ctx).
		Where("state = ? AND next_run_at <= ?", models.AutomationStateActive, now.UTC()).
		Order("next_run_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []models.Automation
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// TryStartRun atomically moves an automation into running. It reports false
// when the row is already running (or does not exist); the conditional
// UPDATE is the only guard against two workers starting the same automation.
func (s *Store) TryStartRun(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Automation{}).
		Where("id = ? AND state <> ?", id, models.AutomationStateRunning).
		Updates(map[string]interface{}{
			"state":      models.AutomationStateRunning,
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RunUpdate is the terminal write of a run. Nil timestamps are left untouched.
type RunUpdate struct {
	State     string
	LastRunAt *time.Time
	NextRunAt *time.Time
}

func (s *Store) FinishRun(ctx context.Context, id uint, upd RunUpdate, now time.Time) error {
	fields := map[string]interface{}{
		"state":      upd.State,
		"updated_at": now.UTC(),
	}
	if upd.LastRunAt != nil {
		fields["last_run_at"] = upd.LastRunAt.UTC()
	}
	if upd.NextRunAt != nil {
		fields["next_run_at"] = upd.NextRunAt.UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.Automation{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Reactivate moves a failed automation back to active. It reports false
// when the automation is not in the failed state.
func (s *Store) Reactivate(ctx context.Context, id uint, nextRunAt, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Automation{}).
		Where("id = ? AND state = ?", id, models.AutomationStateFailed).
		Updates(map[string]interface{}{
			"state":       models.AutomationStateActive,
			"next_run_at": nextRunAt.UTC(),
			"updated_at":  now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) RecordRun(ctx context.Context, run *models.AutomationRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *Store) ListRuns(ctx context.Context, automationID uint, limit int) ([]models.AutomationRun, error) {
	q := s.db.WithContext(ctx).Where("automation_id = ?", automationID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []models.AutomationRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ---- lookups ----

// FindOrganization returns nil, nil when the organization does not exist.
func (s *Store) FindOrganization(ctx context.Context, id uint) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// FindBadgeBySlug returns nil, nil when no badge has the slug.
func (s *Store) FindBadgeBySlug(ctx context.Context, slug string) (*models.Badge, error) {
	var badge models.Badge
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&badge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// GetArticle returns nil, nil when the article does not exist.
func (s *Store) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ---- candidates ----

// ArticleFilter narrows published articles. A zero From means no lower bound.
type ArticleFilter struct {
	OrganizationID  *uint
	From            time.Time
	To              time.Time
	MinScore        *int // featured articles bypass the floor
	ExcludeBanished bool
}

// PublishedArticles returns matching articles ordered by published_at, id.
func (s *Store) PublishedArticles(ctx context.Context, f ArticleFilter) ([]models.Article, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("articles.published = ?", true).
		Where("articles.published_at IS NOT NULL").
		Where("articles.published_at <= ?", f.To.UTC())
	if !f.From.IsZero() {
		q = q.Where("articles.published_at >= ?", f.From.UTC())
	}
	if f.OrganizationID != nil {
		q = q.Where("articles.organization_id = ?", *f.OrganizationID)
	}
	if f.MinScore != nil {
		q = q.Where("(articles.score >= ? OR articles.featured = ?)", *f.MinScore, true)
	}
	if f.ExcludeBanished {
		q = q.Where("articles.user_id NOT IN (?)", s.banishedUserIDs(ctx))
	}

	var list []models.Article
	if err := q.Order("articles.published_at ASC, articles.id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// HasEarlierOrgArticle reports whether the user published in the
// organization before the given time.
func (s *Store) HasEarlierOrgArticle(ctx context.Context, userID, orgID uint, before time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("user_id = ? AND organization_id = ? AND published = ?", userID, orgID, true).
		Where("published_at < ?", before.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// welcomeScanPage is how many LIKE candidates are checked per round trip.
const welcomeScanPage = 50

// CurrentWelcomeThread returns the most recently published article whose
// tag list contains tag exactly (case-insensitive), or nil when there is none.
func (s *Store) CurrentWelcomeThread(ctx context.Context, tag string, now time.Time) (*models.Article, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, nil
	}
	q := s.db.WithContext(ctx).
		Where("published = ? AND published_at <= ?", true, now.UTC()).
		Where("LOWER(cached_tag_list) LIKE ?", "%"+tag+"%").
		Order("published_at DESC, id DESC").
		Session(&gorm.Session{})

	// LIKE 只是粗筛（welcomeback 也会命中），逐页精确匹配直到找到
	for offset := 0; ; offset += welcomeScanPage {
		var page []models.Article
		if err := q.Offset(offset).Limit(welcomeScanPage).Find(&page).Error; err != nil {
			return nil, err
		}
		for i := range page {
			for _, t := range utils.ParseTagList(page[i].CachedTagList) {
				if t == tag {
					return &page[i], nil
				}
			}
		}
		if len(page) < welcomeScanPage {
			return nil, nil
		}
	}
}

// CommentFilter narrows comments on one article. A zero From means no lower bound.
type CommentFilter struct {
	ArticleID       uint
	From            time.Time
	To              time.Time
	ExcludeBanished bool
}

// CommentsOn returns non-deleted comments, nested replies included, ordered
// by created_at, id.
func (s *Store) CommentsOn(ctx context.Context, f CommentFilter) ([]models.Comment, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("comments.article_id = ? AND comments.deleted = ?", f.ArticleID, false).
		Where("comments.created_at <= ?", f.To.UTC())
	if !f.From.IsZero() {
		q = q.Where("comments.created_at >= ?", f.From.UTC())
	}
	if f.ExcludeBanished {
		q = q.Where("comments.user_id NOT IN (?)", s.banishedUserIDs(ctx))
	}
	var list []models.Comment
	if err := q.Order("comments.created_at ASC, comments.id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) banishedUserIDs(ctx context.Context) *gorm.DB {
	// Unscoped: a banished user stays excluded after a soft delete
	return s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Select("id").Where("banished = ?", true)
}

// ---- side effects ----

// HasAchievement reports whether the user holds the badge. With a non-nil
// since, only achievements created strictly after it count.
func (s *Store) HasAchievement(ctx context.Context, userID, badgeID uint, since *time.Time) (bool, error) {
	return hasAchievement(s.db.WithContext(ctx), userID, badgeID, since)
}

func hasAchievement(db *gorm.DB, userID, badgeID uint, since *time.Time) (bool, error) {
	q := db.Model(&models.BadgeAchievement{}).Where("user_id = ? AND badge_id = ?", userID, badgeID)
	if since != nil {
		q = q.Where("created_at > ?", since.UTC())
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AwardAchievement re-checks the idempotency rule and creates the
// achievement in one transaction. It reports false when the user already
// holds the badge. The badge row is locked FOR UPDATE so concurrent awards
// of the same badge serialize between the check and the insert.
func (s *Store) AwardAchievement(ctx context.Context, ach *models.BadgeAchievement, since *time.Time) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var badge models.Badge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&badge, ach.BadgeID).Error; err != nil {
			return fmt.Errorf("lock badge %d: %w", ach.BadgeID, err)
		}
		exists, err := hasAchievement(tx, ach.UserID, ach.BadgeID, since)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := tx.Create(ach).Error; err != nil {
			return fmt.Errorf("create badge achievement: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Store) CreateArticle(ctx context.Context, a *models.Article) error {
	return s.db.WithContext(ctx).Create(a).Error
}
