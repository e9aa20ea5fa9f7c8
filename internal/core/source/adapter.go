// Package source は外部レジストリからの会社情報取得を抽象化します。
package source

import (
	"context"

	"github.com/ogurasousui/company-registry/internal/core/company"
)

// Adapter は一つの外部レジストリから会社情報を取得し、正規化済みの Record に変換します。
// 取得失敗は必ず *FetchError で返します。内部でのリトライは行いません。
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, code string) (*company.Record, error)
}

// Pacer は送信間隔を制御する Adapter が実装します。
// Pace は次の送信枠が空くまで待ち、その枠を予約したコンテキストを返します。
// 返されたコンテキストでの最初の送信は待たずに行われます。
type Pacer interface {
	Pace(ctx context.Context) (context.Context, error)
}
