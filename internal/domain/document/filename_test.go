package document

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"notes.txt":                "notes.txt",
		"my report.pdf":            "my_report.pdf",
		"../../etc/passwd.txt":     "passwd.txt",
		`C:\Users\bob\resume.docx`: "resume.docx",
		".hidden.txt":              "hidden.txt",
		"résumé (1).doc":           "rsum_1.doc",
		"":                         "",
		"   ":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestSanitizeFilenameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("a", 400) + ".pdf"

	got := SanitizeFilename(long)
	assert.Len(t, got, MaxFilenameLength)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
	assert.Equal(t, ".pdf", filepath.Ext(got))

	// 超长扩展名不保留
	weird := "a." + strings.Repeat("x", 300)
	assert.Len(t, SanitizeFilename(weird), MaxFilenameLength)
}
