package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"automations/internal/models"
	"automations/internal/recurrence"
	"automations/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func newTestStore(t *testing.T) (*store.Store, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:services_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return st, db
}

func seedUser(t *testing.T, db *gorm.DB, username string, banished bool) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Name: username, Banished: banished}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedOrg(t *testing.T, db *gorm.DB, name string) *models.Organization {
	t.Helper()
	o := &models.Organization{Name: name, Slug: strings.ToLower(strings.ReplaceAll(name, " ", "-"))}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	return o
}

func seedBadge(t *testing.T, db *gorm.DB, slug string, multi bool) *models.Badge {
	t.Helper()
	b := &models.Badge{Title: slug, Slug: slug, AllowMultipleAwards: multi}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("seed badge: %v", err)
	}
	return b
}

type articleSeed struct {
	user     *models.User
	org      *models.Organization
	title    string
	body     string
	tags     string
	at       time.Time
	score    int
	featured bool
	draft    bool
}

func seedArticle(t *testing.T, db *gorm.DB, s articleSeed) *models.Article {
	t.Helper()
	at := s.at.UTC()
	a := &models.Article{
		UserID:        s.user.ID,
		Title:         s.title,
		BodyMarkdown:  s.body,
		CachedTagList: s.tags,
		Published:     !s.draft,
		Score:         s.score,
		Featured:      s.featured,
	}
	if a.Title == "" {
		a.Title = "Post by " + s.user.Username
	}
	if !s.draft {
		a.PublishedAt = &at
	}
	if s.org != nil {
		id := s.org.ID
		a.OrganizationID = &id
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed article: %v", err)
	}
	return a
}

func seedComment(t *testing.T, db *gorm.DB, article *models.Article, user *models.User, body string, at time.Time, parent *models.Comment) *models.Comment {
	t.Helper()
	c := &models.Comment{
		ArticleID: article.ID,
		UserID:    user.ID,
		Body:      body,
		CreatedAt: at.UTC(),
		UpdatedAt: at.UTC(),
	}
	if parent != nil {
		pid := parent.ID
		c.ParentID = &pid
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return c
}

func seedAchievement(t *testing.T, db *gorm.DB, user *models.User, badge *models.Badge, at time.Time) {
	t.Helper()
	ach := &models.BadgeAchievement{
		UserID:                  user.ID,
		BadgeID:                 badge.ID,
		RewardingContextMessage: "seeded",
		CreatedAt:               at.UTC(),
		UpdatedAt:               at.UTC(),
	}
	if err := db.Create(ach).Error; err != nil {
		t.Fatalf("seed achievement: %v", err)
	}
}

func achievements(t *testing.T, db *gorm.DB, user *models.User, badge *models.Badge) []models.BadgeAchievement {
	t.Helper()
	var list []models.BadgeAchievement
	if err := db.Where("user_id = ? AND badge_id = ?", user.ID, badge.ID).Order("id").Find(&list).Error; err != nil {
		t.Fatalf("load achievements: %v", err)
	}
	return list
}

func seedAutomation(t *testing.T, db *gorm.DB, a *models.Automation) *models.Automation {
	t.Helper()
	if a.Name == "" {
		a.Name = a.ServiceName
	}
	if a.BotID == 0 {
		a.BotID = 1
	}
	if a.Frequency == "" {
		a.Frequency = recurrence.Daily
		a.FrequencyConfig = datatypes.JSONMap{"hour": 9, "minute": 0}
	}
	if a.State == "" {
		a.State = models.AutomationStateActive
	}
	if a.NextRunAt.IsZero() {
		a.NextRunAt = testNow.Add(-time.Minute)
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed automation: %v", err)
	}
	return a
}

func reload(t *testing.T, db *gorm.DB, id uint) *models.Automation {
	t.Helper()
	var a models.Automation
	if err := db.First(&a, id).Error; err != nil {
		t.Fatalf("reload automation: %v", err)
	}
	return &a
}

// mockOracle is a testify mock of the qualification oracle.
type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Qualifies(ctx context.Context, content, criteria string) (bool, error) {
	args := m.Called(ctx, content, criteria)
	return args.Bool(0), args.Error(1)
}

func (m *mockOracle) Helpful(ctx context.Context, comment string) (bool, error) {
	args := m.Called(ctx, comment)
	return args.Bool(0), args.Error(1)
}

func (m *mockOracle) Spam(ctx context.Context, content string) (bool, error) {
	args := m.Called(ctx, content)
	return args.Bool(0), args.Error(1)
}

// approvingOracle says every piece of content is clean and qualifies.
func approvingOracle() *mockOracle {
	m := &mockOracle{}
	m.On("Spam", mock.Anything, mock.Anything).Return(false, nil).Maybe()
	m.On("Qualifies", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Maybe()
	m.On("Helpful", mock.Anything, mock.Anything).Return(true, nil).Maybe()
	return m
}
