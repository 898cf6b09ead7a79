package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameLen = 120

// SanitizeName replaces every character outside [A-Za-z0-9.-] with '_' and
// caps the result at maxLen bytes. An empty name becomes "upload".
func SanitizeName(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "upload"
	}
	var b strings.Builder
	for _, r := range s {
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	cleaned := b.String()
	if maxLen > 0 && len(cleaned) > maxLen {
		cleaned = cleaned[len(cleaned)-maxLen:]
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-':
		return true
	default:
		return false
	}
}

// UploadName names a user upload: "<unix-ms>-<sanitized original name>".
func UploadName(original string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeName(original, maxNameLen))
}

// TimestampName builds "<prefix>-<unix-ms><ext>", e.g. tts-1700000000000.mp3.
func TimestampName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%d%s", prefix, now.UnixMilli(), ext)
}

// withCollisionSuffix inserts a random suffix before the extension.
func withCollisionSuffix(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + suffix + ext
}

// validObjectName rejects names that could escape the bucket or directory.
func validObjectName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
