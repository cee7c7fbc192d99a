// Package recap turns recent GitHub activity into an article draft.
package recap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"automations/pkg/github"
	"automations/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Content is a generated article.
type Content struct {
	Title string
	Body  string
}

// Activity is the part of the GitHub client the generator reads.
type Activity interface {
	MergedPullRequests(ctx context.Context, repo string, since time.Time) ([]github.PullRequest, error)
	CommitsSince(ctx context.Context, repo string, since time.Time) ([]github.Commit, error)
}

// Writer produces prose from a prompt.
type Writer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const systemPrompt = `You write concise weekly recap posts for a developer community.
Write in Markdown. The first line must be the title prefixed with "# ".
Summarise the changes for readers who do not follow the repository closely.`

// maxItems bounds how many pull requests and commits go into the prompt.
const maxItems = 40

type Generator struct {
	activity Activity
	writer   Writer
	logger   *logrus.Logger
}

func NewGenerator(activity Activity, writer Writer, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{activity: activity, writer: writer, logger: logger}
}

// Generate returns nil, nil when the repository had no activity since the
// given time.
func (g *Generator) Generate(ctx context.Context, repo string, since time.Time) (*Content, error) {
	prs, err := g.activity.MergedPullRequests(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	commits, err := g.activity.CommitsSince(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 && len(commits) == 0 {
		g.logger.Infof("recap: no activity in %s since %s", repo, utils.FormatTime(since))
		return nil, nil
	}

	text, err := g.writer.Complete(ctx, systemPrompt, buildPrompt(repo, since, prs, commits))
	if err != nil {
		return nil, fmt.Errorf("write recap for %s: %w", repo, err)
	}
	content := splitTitle(text)
	if content.Title == "" {
		content.Title = fmt.Sprintf("What's new in %s", repo)
	}
	return &content, nil
}

func buildPrompt(repo string, since time.Time, prs []github.PullRequest, commits []github.Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\nPeriod: since %s\n\n", repo, since.UTC().Format("2006-01-02"))
	if len(prs) > 0 {
		b.WriteString("Merged pull requests:\n")
		for i, pr := range prs {
			if i >= maxItems {
				break
			}
			fmt.Fprintf(&b, "- #%d %s (@%s)\n", pr.Number, pr.Title, pr.User.Login)
			if body := strings.TrimSpace(pr.Body); body != "" {
				fmt.Fprintf(&b, "  %s\n", utils.Truncate(strings.ReplaceAll(body, "\n", " "), 300))
			}
		}
		b.WriteString("\n")
	}
	if len(commits) > 0 {
		b.WriteString("Commits:\n")
		for i, c := range commits {
			if i >= maxItems {
				break
			}
			fmt.Fprintf(&b, "- %s %s\n", shortSHA(c.SHA), c.Headline())
		}
	}
	return b.String()
}

// splitTitle takes a leading "# Title" line as the title.
func splitTitle(text string) Content {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if strings.HasPrefix(first, "#") {
		return Content{
			Title: strings.TrimSpace(strings.TrimLeft(first, "#")),
			Body:  strings.TrimSpace(rest),
		}
	}
	return Content{Body: text}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
