package models

import (
	"time"

	"gorm.io/gorm"
)

// 用户模型（机器人账号同样是 User）
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Name      string         `json:"name"`
	Bot       bool           `gorm:"default:false" json:"bot"`
	Banished  bool           `gorm:"default:false;index" json:"banished"` // banished / suspended
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 组织
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"unique;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// 文章
type Article struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index" json:"user_id"`
	OrganizationID *uint      `gorm:"index" json:"organization_id"`
	Title          string     `gorm:"not null" json:"title"`
	BodyMarkdown   string     `gorm:"type:text" json:"body_markdown"`
	CachedTagList  string     `json:"cached_tag_list"` // 标签，逗号分隔
	Published      bool       `gorm:"default:false;index" json:"published"`
	PublishedAt    *time.Time `gorm:"index" json:"published_at"`
	Score          int        `gorm:"default:0" json:"score"`
	Featured       bool       `gorm:"default:false" json:"featured"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// 评论，嵌套回复通过 ParentID 关联，但都挂在同一篇文章下
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"index" json:"article_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Body      string    `gorm:"type:text" json:"body"`
	Deleted   bool      `gorm:"default:false" json:"deleted"`
	Score     int       `gorm:"default:0" json:"score"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// 徽章
type Badge struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Title               string    `gorm:"not null" json:"title"`
	Slug                string    `gorm:"unique;not null" json:"slug"`
	Description         string    `gorm:"type:text" json:"description"`
	AllowMultipleAwards bool      `gorm:"default:false" json:"allow_multiple_awards"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// BadgeAchievement is one award of a badge to a user.
type BadgeAchievement struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	UserID                  uint      `gorm:"index:idx_badge_achievements_user_badge" json:"user_id"`
	BadgeID                 uint      `gorm:"index:idx_badge_achievements_user_badge" json:"badge_id"`
	RewarderID              *uint     `json:"rewarder_id"`
	RewardingContextMessage string    `gorm:"type:text" json:"rewarding_context_message"`
	CreatedAt               time.Time `gorm:"index" json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}
