package notifier

import (
	"context"
	"log/slog"

	"github.com/ogurasousui/company-registry/internal/core/subscription"
)

// LogNotifier は通知を構造化ログへ書き出すだけの Notifier です。ローカル開発向けです。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier は LogNotifier を生成します。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogNotifier{logger: logger}
}

// Send は通知内容をログに記録します。
func (n *LogNotifier) Send(ctx context.Context, msg subscription.Message) error {
	n.logger.InfoContext(ctx, "notification",
		"recipient", msg.Recipient,
		"subject", msg.Subject,
		"company_id", msg.CompanyID,
		"code", msg.CompanyCode,
		"body", msg.Body,
	)
	return nil
}
