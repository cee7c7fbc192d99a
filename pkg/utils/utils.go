package utils

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ParseTagList 解析逗号分隔的标签，去空白、转小写、去重
func ParseTagList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		tag = strings.TrimPrefix(tag, "#")
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// JoinTagList is the inverse of ParseTagList.
func JoinTagList(tags []string) string {
	return strings.Join(tags, ", ")
}

// ContainsAnyFold reports whether any keyword occurs in one of the texts,
// ignoring case. An empty keyword list matches everything.
func ContainsAnyFold(keywords []string, texts ...string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Truncate 按字符截断，超出部分以 "..." 结尾
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// 时间格式化
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
