package source

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// レジストリのページに埋め込まれたコピー用ボタンの文言です。
var copyArtifacts = []string{"копіювати", "скопійовано"}

// CleanText はスクレイピングしたテキストからコピー用ボタンの文言を除去し、空白を一つにまとめ NFC 正規化します。
func CleanText(raw string) string {
	s := norm.NFC.String(raw)
	for _, artifact := range copyArtifacts {
		s = strings.ReplaceAll(s, artifact, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// Optional は CleanText の結果を返し、空文字列の場合は nil を返します。
func Optional(raw string) *string {
	s := CleanText(raw)
	if s == "" {
		return nil
	}
	return &s
}
