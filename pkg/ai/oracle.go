package ai

import (
	"context"
	"fmt"
	"strings"

	"automations/pkg/utils"
)

// maxContentChars bounds how much of an article or comment is sent.
const maxContentChars = 6000

const verdictInstruction = "Answer with a single word: YES or NO."

// Completer is the part of Client the Oracle needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Oracle answers yes/no qualification questions about community content.
type Oracle struct {
	llm Completer
}

func NewOracle(llm Completer) *Oracle {
	return &Oracle{llm: llm}
}

// Qualifies asks whether content meets the free-form criteria.
func (o *Oracle) Qualifies(ctx context.Context, content, criteria string) (bool, error) {
	system := "You review articles published on a developer community. " + verdictInstruction
	user := fmt.Sprintf("Criteria: %s\n\nDoes the following article meet the criteria?\n\n---\n%s\n---",
		criteria, utils.Truncate(content, maxContentChars))
	return o.ask(ctx, system, user)
}

// Helpful asks whether a comment is a genuine, kind welcome to newcomers.
func (o *Oracle) Helpful(ctx context.Context, comment string) (bool, error) {
	system := "You review comments on a community welcome thread. " + verdictInstruction
	user := fmt.Sprintf("Is this comment a genuine, helpful and friendly welcome to new members?\n\n---\n%s\n---",
		utils.Truncate(comment, maxContentChars))
	return o.ask(ctx, system, user)
}

// Spam asks whether content is spam or self-promotion.
func (o *Oracle) Spam(ctx context.Context, content string) (bool, error) {
	system := "You moderate a developer community. " + verdictInstruction
	user := fmt.Sprintf("Is the following content spam, advertising or low-effort self-promotion?\n\n---\n%s\n---",
		utils.Truncate(content, maxContentChars))
	return o.ask(ctx, system, user)
}

func (o *Oracle) ask(ctx context.Context, system, user string) (bool, error) {
	answer, err := o.llm.Complete(ctx, system, user)
	if err != nil {
		return false, err
	}
	return ParseVerdict(answer)
}

// ParseVerdict reads a YES/NO answer, tolerating case, punctuation and
// trailing explanation.
func ParseVerdict(answer string) (bool, error) {
	fields := strings.Fields(strings.ToUpper(answer))
	if len(fields) == 0 {
		return false, fmt.Errorf("empty verdict")
	}
	word := strings.Trim(fields[0], ".,!:;\"'*")
	switch word {
	case "YES", "TRUE":
		return true, nil
	case "NO", "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognised verdict %q", utils.Truncate(answer, 40))
	}
}
