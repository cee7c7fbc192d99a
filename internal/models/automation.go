package models

import (
	"time"

	"gorm.io/datatypes"
)

// Automation states.
const (
	AutomationStateActive  = "active"
	AutomationStateRunning = "running"
	AutomationStateFailed  = "failed"
)

// Automation 定时自动化任务定义
type Automation struct {
	ID                     uint              `gorm:"primaryKey" json:"id"`
	Name                   string            `json:"name"`
	BotID                  uint              `gorm:"index;not null" json:"bot_id"`
	ServiceName            string            `gorm:"not null" json:"service_name"`        // github_repo_recap, first_org_post_badge, ...
	Action                 string            `gorm:"not null" json:"action"`              // create_draft, publish_article, award_badge
	ActionConfig           datatypes.JSONMap `json:"action_config"`                       // 各策略自己的参数
	Frequency              string            `gorm:"not null" json:"frequency"`           // hourly, daily, weekly, custom_interval
	FrequencyConfig        datatypes.JSONMap `json:"frequency_config"`                    // minute, hour, day_of_week, interval_days
	State                  string            `gorm:"index;default:'active'" json:"state"` // active, running, failed
	LastRunAt              *time.Time        `json:"last_run_at"`
	NextRunAt              time.Time         `gorm:"index" json:"next_run_at"`
	AdditionalInstructions string            `gorm:"type:text" json:"additional_instructions"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// AutomationRun 执行记录用于审计
type AutomationRun struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RunID        string    `gorm:"uniqueIndex;size:36" json:"run_id"`
	AutomationID uint      `gorm:"index" json:"automation_id"`
	Status       string    `gorm:"index" json:"status"` // success, skipped, failed
	Message      string    `gorm:"type:text" json:"message"`
	ArticleID    *uint     `json:"article_id,omitempty"`
	UsersAwarded int       `json:"users_awarded"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Run statuses recorded on AutomationRun.
const (
	RunStatusSuccess = "success"
	RunStatusSkipped = "skipped"
	RunStatusFailed  = "failed"
)
