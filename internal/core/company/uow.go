package company

import (
	"context"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

// RealClock は UTC の壁時計を返す Clock です。
type RealClock struct{}

// Now は現在時刻を UTC で返します。
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// NoopTransactionManager は fn をそのまま実行する TransactionManager です。
type NoopTransactionManager struct{}

func (NoopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (NoopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
