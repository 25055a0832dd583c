package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// CommentStatus 评论审核状态
type CommentStatus uint8

const (
	CommentPending CommentStatus = iota + 1
	CommentApproved
	CommentRejected
)

var commentStatusSlugs = map[CommentStatus]string{
	CommentPending:  "pending",
	CommentApproved: "approved",
	CommentRejected: "rejected",
}

// AllCommentStatuses 全部审核状态
func AllCommentStatuses() []CommentStatus {
	return []CommentStatus{CommentPending, CommentApproved, CommentRejected}
}

// ParseCommentStatus 从字符串解析状态（大小写不敏感）
func ParseCommentStatus(s string) (CommentStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for status, slug := range commentStatusSlugs {
		if slug == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("未知的评论状态: %q", s)
}

// IsValid 是否为已定义的状态
func (s CommentStatus) IsValid() bool {
	_, ok := commentStatusSlugs[s]
	return ok
}

func (s CommentStatus) String() string {
	if slug, ok := commentStatusSlugs[s]; ok {
		return slug
	}
	return fmt.Sprintf("CommentStatus(%d)", uint8(s))
}

// MarshalJSON 序列化为字符串标识
func (s CommentStatus) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("无效的评论状态: %d", uint8(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON 从字符串标识反序列化
func (s *CommentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseCommentStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value 以字符串写入数据库
func (s CommentStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("无效的评论状态: %d", uint8(s))
	}
	return s.String(), nil
}

// Scan 从数据库字符串读取
func (s *CommentStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseCommentStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
	case []byte:
		parsed, err := ParseCommentStatus(string(v))
		if err != nil {
			return err
		}
		*s = parsed
	default:
		return fmt.Errorf("无法扫描评论状态: %T", value)
	}
	return nil
}
