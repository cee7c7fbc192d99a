package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"automations/internal/models"
	"automations/pkg/utils"

	"github.com/sirupsen/logrus"
)

// DefaultRecapDays is the lookback when days_ago is not configured.
const DefaultRecapDays = 7

type repoRecapConfig struct {
	RepoName       string `json:"repo_name" validate:"required"`
	DaysAgo        int    `json:"days_ago" validate:"gte=0"`
	Tags           string `json:"tags"`
	OrganizationID uint   `json:"organization_id"`
}

// GitHubRepoRecap drafts or publishes an article summarising recent
// activity in a repository.
type GitHubRepoRecap struct {
	store     ArticleStore
	generator Generator
	logger    *logrus.Logger
	now       func() time.Time
}

// RecapOption configures a GitHubRepoRecap.
type RecapOption func(*GitHubRepoRecap)

// WithRecapClock overrides the time source.
func WithRecapClock(now func() time.Time) RecapOption {
	return func(s *GitHubRepoRecap) {
		s.now = now
	}
}

func NewGitHubRepoRecap(st ArticleStore, generator Generator, logger *logrus.Logger, opts ...RecapOption) *GitHubRepoRecap {
	if logger == nil {
		logger = logrus.New()
	}
	s := &GitHubRepoRecap{
		store:     st,
		generator: generator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GitHubRepoRecap) Call(ctx context.Context, a *models.Automation) (Result, error) {
	article, err := s.run(ctx, a)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			return FailureResult(cerr.Msg), nil
		}
		return Result{}, err
	}
	return ArticleResult(article), nil
}

func (s *GitHubRepoRecap) run(ctx context.Context, a *models.Automation) (*models.Article, error) {
	var cfg repoRecapConfig
	if err := decodeActionConfig(a.ActionConfig, &cfg, ""); err != nil {
		return nil, err
	}
	cfg.RepoName = strings.TrimSpace(cfg.RepoName)
	if cfg.RepoName == "" {
		return nil, &ConfigError{Field: "repo_name", Msg: "repo_name is required"}
	}
	if cfg.DaysAgo == 0 {
		cfg.DaysAgo = DefaultRecapDays
	}

	var orgID *uint
	if cfg.OrganizationID != 0 {
		org, err := s.store.FindOrganization(ctx, cfg.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("find organization %d: %w", cfg.OrganizationID, err)
		}
		if org == nil {
			return nil, &ConfigError{
				Field: "organization_id",
				Msg:   fmt.Sprintf("Organization with id '%d' not found", cfg.OrganizationID),
			}
		}
		orgID = &org.ID
	}

	now := s.now()
	since := now.AddDate(0, 0, -cfg.DaysAgo)
	content, err := s.generator.Generate(ctx, cfg.RepoName, since)
	if err != nil {
		return nil, fmt.Errorf("generate recap for %s: %w", cfg.RepoName, err)
	}
	if content == nil {
		s.logger.WithField("automation_id", a.ID).Infof("repo recap: nothing to write for %s", cfg.RepoName)
		return nil, nil
	}

	article := &models.Article{
		UserID:         a.BotID,
		OrganizationID: orgID,
		Title:          content.Title,
		BodyMarkdown:   withAdditionalContext(content.Body, a.AdditionalInstructions),
		CachedTagList:  utils.JoinTagList(utils.ParseTagList(cfg.Tags)),
	}
	if a.Action == ActionPublishArticle {
		article.Published = true
		article.PublishedAt = &now
	}
	if err := s.store.CreateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}
	return article, nil
}

// withAdditionalContext appends the operator's instructions as a delimited
// section.
func withAdditionalContext(body, instructions string) string {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return body
	}
	return strings.TrimRight(body, "\n") + "\n\n---\n\n## Additional Context\n\n" + instructions + "\n"
}
