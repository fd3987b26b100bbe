package document

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownFilename 结果缺少 filename 时的展示名
const UnknownFilename = "Unknown"

// bodyFields 正文字段的回退顺序（不同后端配置下字段名不一致）
var bodyFields = []string{"content", "text", "body"}

// Record 检索后端返回的一条结果（开放的字段映射）
type Record map[string]any

// String 读取字段的字符串形式，不存在返回空
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Body 按 content → text → body 顺序取第一个非空正文
func (r Record) Body() string {
	for _, key := range bodyFields {
		if s := strings.TrimSpace(r.String(key)); s != "" {
			return s
		}
	}
	return ""
}

// Filename 来源文件名，缺失时为 "Unknown"
func (r Record) Filename() string {
	if s := strings.TrimSpace(r.String("filename")); s != "" {
		return s
	}
	return UnknownFilename
}

// Excerpt 转为带来源的片段，正文为空时 ok=false
func (r Record) Excerpt() (Excerpt, bool) {
	body := r.Body()
	if body == "" {
		return Excerpt{}, false
	}
	return Excerpt{Filename: r.Filename(), Content: body}, true
}

// stringify 非字符串值的通用字符串形式
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(t, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, stringify(t[k])))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(t)
	}
}
