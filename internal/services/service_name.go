package services

import "strings"

// ServiceName selects a strategy family. The set is closed: anything not
// listed here is rejected with "Unknown service".
type ServiceName string

const (
	ServiceGitHubRepoRecap     ServiceName = "github_repo_recap"
	ServiceFirstOrgPostBadge   ServiceName = "first_org_post_badge"
	ServiceArticleContentBadge ServiceName = "article_content_badge"
	ServiceWarmWelcomeBadge    ServiceName = "warm_welcome_badge"
)

// Actions within the strategy families.
const (
	ActionCreateDraft    = "create_draft"
	ActionPublishArticle = "publish_article"
	ActionAwardBadge     = "award_badge"
)

// ServiceNames lists every known service in a stable order.
func ServiceNames() []ServiceName {
	return []ServiceName{
		ServiceGitHubRepoRecap,
		ServiceFirstOrgPostBadge,
		ServiceArticleContentBadge,
		ServiceWarmWelcomeBadge,
	}
}

// ParseServiceName reports whether s names a known service.
func ParseServiceName(s string) (ServiceName, bool) {
	name := ServiceName(strings.TrimSpace(s))
	switch name {
	case ServiceGitHubRepoRecap, ServiceFirstOrgPostBadge, ServiceArticleContentBadge, ServiceWarmWelcomeBadge:
		return name, true
	default:
		return "", false
	}
}

// Actions returns the actions the service accepts.
func (n ServiceName) Actions() []string {
	switch n {
	case ServiceGitHubRepoRecap:
		return []string{ActionCreateDraft, ActionPublishArticle}
	case ServiceFirstOrgPostBadge, ServiceArticleContentBadge, ServiceWarmWelcomeBadge:
		return []string{ActionAwardBadge}
	default:
		return nil
	}
}

// SupportsAction reports whether action is valid for the service.
func (n ServiceName) SupportsAction(action string) bool {
	for _, a := range n.Actions() {
		if a == action {
			return true
		}
	}
	return false
}
