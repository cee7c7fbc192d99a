package services

import "automations/internal/models"

// Result is the uniform outcome of the Executor and of every strategy.
// A failed Result never carries a payload.
type Result struct {
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Article      *models.Article `json:"article,omitempty"`
	UsersAwarded int             `json:"users_awarded"`
}

// ArticleResult is a success carrying the created article. A nil article
// means the run legitimately produced nothing.
func ArticleResult(article *models.Article) Result {
	return Result{Success: true, Article: article}
}

// AwardResult is a success carrying the number of users awarded.
func AwardResult(usersAwarded int) Result {
	return Result{Success: true, UsersAwarded: usersAwarded}
}

// FailureResult builds a failure with zero-valued payload fields.
func FailureResult(message string) Result {
	return Result{Success: false, ErrorMessage: message}
}

// Failed is the inverse of Success.
func (r Result) Failed() bool {
	return !r.Success
}
