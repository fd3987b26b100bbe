package document

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MaxFilenameLength 与主存储 filename 列宽一致
const MaxFilenameLength = 255

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename 取文件名最后一段并去除不安全字符（空格转下划线，去掉前导点），
// 超长时截断主干、保留扩展名
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.Join(strings.Fields(name), "_")
	name = reUnsafeFilename.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")

	// 此时只剩 ASCII，按字节截断安全
	if len(name) > MaxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) >= MaxFilenameLength/2 {
			ext = ""
		}
		name = name[:MaxFilenameLength-len(ext)] + ext
	}
	return name
}
