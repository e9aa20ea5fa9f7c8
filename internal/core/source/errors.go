package source

import (
	"errors"
	"fmt"
)

// Kind は取得失敗の分類です。
type Kind int

const (
	// KindNotFound はレジストリに該当コードが存在しないことを表します。
	KindNotFound Kind = iota + 1
	// KindUnreachable は通信失敗やタイムアウトを表します。
	KindUnreachable
	// KindParseFailure はレスポンスを Record に変換できなかったことを表します。
	KindParseFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnreachable:
		return "unreachable"
	case KindParseFailure:
		return "parse_failure"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound      = errors.New("source: not found")
	ErrUnreachable   = errors.New("source: unreachable")
	ErrParseFailure  = errors.New("source: parse failure")
	ErrUnknownSource = errors.New("source: unknown source")
)

// FetchError は Adapter.Fetch の失敗を表します。errors.Is で Kind に対応する番兵エラーと一致します。
type FetchError struct {
	Kind   Kind
	Source string
	Code   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: fetch %s: %s", e.Source, e.Code, e.Kind)
	}
	return fmt.Sprintf("source %s: fetch %s: %s: %v", e.Source, e.Code, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrParseFailure:
		return e.Kind == KindParseFailure
	}
	return false
}

// NotFound は KindNotFound の FetchError を生成します。
func NotFound(sourceName, code string, err error) *FetchError {
	return &FetchError{Kind: KindNotFound, Source: sourceName, Code: code, Err: err}
}

// Unreachable は KindUnreachable の FetchError を生成します。
func Unreachable(sourceName, code string, err error) *FetchError {
	return &FetchError{Kind: KindUnreachable, Source: sourceName, Code: code, Err: err}
}

// ParseFailure は KindParseFailure の FetchError を生成します。
func ParseFailure(sourceName, code string, err error) *FetchError {
	return &FetchError{Kind: KindParseFailure, Source: sourceName, Code: code, Err: err}
}

// AsFetchError は err の連鎖から *FetchError を取り出します。
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
