package company

import (
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z_-]*$`)

// NormalizeCode はレジストリコードの前後空白を除去して検証します。
// コードは外部レジストリの識別子なので大文字小文字は変換しません。
func NormalizeCode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !codePattern.MatchString(trimmed) {
		return "", ErrInvalidCode
	}
	return trimmed, nil
}
