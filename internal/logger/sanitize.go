package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Length caps for logged values
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizeString makes s safe for a log line: invalid UTF-8 and control characters other
// than whitespace are dropped and the result is cut at maxLength bytes
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
	if len(s) > maxLength {
		s = strings.ToValidUTF8(s[:maxLength], "") + "..."
	}
	return s
}

// SanitizePath sanitizes a URL path
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeUserID sanitizes a user ID
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeError sanitizes an error message
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// Redacted logs patient-authored text as its length and a short digest. Message content is
// health data and never reaches the logs verbatim; the digest still lets two log lines be
// matched to the same message.
func Redacted(key, content string) zap.Field {
	if content == "" {
		return zap.String(key, "")
	}
	sum := sha256.Sum256([]byte(content))
	return zap.Dict(key,
		zap.Int("chars", utf8.RuneCountInString(content)),
		zap.String("sha256", hex.EncodeToString(sum[:])[:12]),
	)
}
