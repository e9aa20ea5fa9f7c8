package company

import (
	"context"
	"time"
)

// Repository は会社レコードの永続化を行うインターフェースです。
// 書き込み系はトランザクション内 (TransactionManager.WithinReadWrite) から呼び出される前提です。
type Repository interface {
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByCode(ctx context.Context, code string) (*Record, error)
	// FindByCodeForUpdate は同一コードへの並行書き込みを直列化するため行ロックを取得して読み込みます。
	FindByCodeForUpdate(ctx context.Context, code string) (*Record, error)
	Create(ctx context.Context, record *Record) (*Record, error)
	// UpdateFields は fields に含まれる属性と last_updated のみを更新します。
	UpdateFields(ctx context.Context, record *Record, fields []Field, lastUpdated time.Time) (*Record, error)
	// FindOlderThan は last_updated が cutoff 以前のレコードを古い順に返します。
	FindOlderThan(ctx context.Context, cutoff time.Time) ([]*Record, error)
}
