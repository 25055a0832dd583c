package services

import (
	"encoding/json"
	"sort"
	"strings"
)

// PermissionSet 主体解析后的权限集合，构造后不可修改
type PermissionSet struct {
	slugs map[string]struct{}
}

// NewPermissionSet 去重并规范化（去空白、小写）权限标识
func NewPermissionSet(slugs ...string) PermissionSet {
	set := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		s = normalizeSlug(s)
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	return PermissionSet{slugs: set}
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Has 是否包含指定权限
func (p PermissionSet) Has(slug string) bool {
	_, ok := p.slugs[normalizeSlug(slug)]
	return ok
}

// Len 权限数量
func (p PermissionSet) Len() int {
	return len(p.slugs)
}

// Slugs 按字典序返回权限标识
func (p PermissionSet) Slugs() []string {
	out := make([]string, 0, len(p.slugs))
	for s := range p.slugs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON 序列化为有序数组
func (p PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Slugs())
}

// UnmarshalJSON 从数组反序列化
func (p *PermissionSet) UnmarshalJSON(data []byte) error {
	var slugs []string
	if err := json.Unmarshal(data, &slugs); err != nil {
		return err
	}
	*p = NewPermissionSet(slugs...)
	return nil
}
