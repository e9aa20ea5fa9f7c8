// Package httpfetch はレジストリ Web サイトへの礼儀正しい HTTP 取得を提供します。
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ogurasousui/company-registry/internal/core/source"
)

const (
	defaultTimeout   = 15 * time.Second
	maxBodyBytes     = 8 << 20
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Options は Client の設定です。
type Options struct {
	// Delay はリクエスト間の最小間隔です。0 の場合は間隔を空けません。
	Delay      time.Duration
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	// MaxBodyBytes は受け付ける本文の上限です。0 以下なら 8 MiB です。
	MaxBodyBytes int64
}

// Client は一つの source 向けの HTTP クライアントです。失敗はすべて *source.FetchError で返します。
type Client struct {
	source    string
	http      *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// New は Client を生成します。
func New(sourceName string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = maxBodyBytes
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Client{
		source:    sourceName,
		http:      hc,
		limiter:   rate.NewLimiter(limit, 1),
		timeout:   timeout,
		userAgent: ua,
		maxBody:   maxBody,
	}
}

type slotKey struct{}

// slot は Reserve で確保した一回分の送信枠です。
type slot struct {
	owner *Client
	used  atomic.Bool
}

// Reserve は次の送信枠が空くまで待ち、その枠を持つコンテキストを返します。
// 呼び出し側は枠を確保してから自身の期限を設定できます。
func (c *Client) Reserve(ctx context.Context) (context.Context, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, contextCause(ctx, err)
	}
	return context.WithValue(ctx, slotKey{}, &slot{owner: c}), nil
}

func (c *Client) takeSlot(ctx context.Context) bool {
	s, ok := ctx.Value(slotKey{}).(*slot)
	return ok && s.owner == c && s.used.CompareAndSwap(false, true)
}

// Get は rawURL を取得して本文を返します。ctx が Reserve 済みの枠を持っていれば待たずに送信します。
// 404 と 410 は NotFound、通信失敗とそれ以外の非 2xx 応答は Unreachable、
// 上限を超える本文は ParseFailure です。
func (c *Client) Get(ctx context.Context, code, rawURL string) ([]byte, error) {
	if !c.takeSlot(ctx) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, source.Unreachable(c.source, code, fmt.Errorf("wait for request slot: %w", contextCause(ctx, err)))
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, source.Unreachable(c.source, code, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, source.Unreachable(c.source, code, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return nil, source.NotFound(c.source, code, fmt.Errorf("http status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return nil, source.Unreachable(c.source, code, fmt.Errorf("http status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, source.Unreachable(c.source, code, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, source.ParseFailure(c.source, code, fmt.Errorf("response body exceeds %d bytes", c.maxBody))
	}
	return body, nil
}

// rate.Limiter.Wait は期限までに枠が取れないと判断した時点で独自のエラーを返すため、コンテキスト側のエラーを優先します。
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok && !errors.Is(err, context.Canceled) {
		return errors.Join(context.DeadlineExceeded, err)
	}
	return err
}
