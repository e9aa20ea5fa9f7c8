package notifier

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/platform/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier はメールで通知を送ります。
type SMTPNotifier struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewSMTPNotifier は SMTPNotifier を生成します。username が空なら認証しません。
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		addr:     cfg.Addr(),
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Send はメールを一通送信します。
func (n *SMTPNotifier) Send(ctx context.Context, msg subscription.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.Recipient, "\r\n") {
		return fmt.Errorf("notifier: invalid recipient %q", msg.Recipient)
	}

	if err := n.sendMail(n.addr, n.auth, n.from, []string{msg.Recipient}, n.compose(msg)); err != nil {
		return fmt.Errorf("notifier: smtp send to %s: %w", msg.Recipient, err)
	}
	return nil
}

func (n *SMTPNotifier) compose(msg subscription.Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.from + "\r\n")
	b.WriteString("To: " + msg.Recipient + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
