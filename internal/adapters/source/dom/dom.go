// Package dom は golang.org/x/net/html のノードツリーに対する最小限の検索ヘルパーです。
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Matcher は要素ノードの条件です。
type Matcher func(n *html.Node) bool

// Parse は HTML を解析してルートノードを返します。
func Parse(b []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(b))
}

// Element は tag 名 (空なら任意) を持ち、classes をすべて含む要素に一致します。
func Element(tag string, classes ...string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		if tag != "" && n.Data != tag {
			return false
		}
		for _, c := range classes {
			if !HasClass(n, c) {
				return false
			}
		}
		return true
	}
}

// WithAttr は属性 key が value に等しい要素に一致します。tag が空なら任意の要素です。
func WithAttr(tag, key, value string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || (tag != "" && n.Data != tag) {
			return false
		}
		v, ok := Attr(n, key)
		return ok && v == value
	}
}

// Find は n の子孫を深さ優先で探索し、最初に一致した要素を返します。n 自身は対象外です。
func Find(n *html.Node, m Matcher) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			return c
		}
		if found := Find(c, m); found != nil {
			return found
		}
	}
	return nil
}

// FindAll は n の子孫のうち一致する要素を文書順で返します。一致した要素の内側は探索しません。
func FindAll(n *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			out = append(out, c)
			continue
		}
		out = append(out, FindAll(c, m)...)
	}
	return out
}

// Children は n の直下の要素のうち一致するものを返します。
func Children(n *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			out = append(out, c)
		}
	}
	return out
}

// HasClass は class 属性に name が含まれるかを判定します。
func HasClass(n *html.Node, name string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == name {
			return true
		}
	}
	return false
}

// Attr は属性値を返します。
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Text は n 配下のテキストノードを空白区切りで連結します。script と style は除外します。
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
