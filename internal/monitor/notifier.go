package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/holygeek00/lite-wanmon/pkg/logging"
	"github.com/holygeek00/lite-wanmon/pkg/models"
)

// Notifier 修复事件通知
type Notifier interface {
	Notify(ev models.RemediationEvent)
	Close(ctx context.Context) error
}

// WebhookNotifier 以 JSON POST 方式发送修复事件，失败时按退避时间重试
type WebhookNotifier struct {
	url         string
	httpClient  *http.Client
	maxRetries  int
	backoffSecs []int
	clock       clock.Clock
	logger      logging.Logger

	// 关闭超时后取消仍在重试的发送
	ctx    context.Context
	cancel context.CancelFunc

	wg           sync.WaitGroup
	failureCount int64
	sentCount    int64
}

// NewWebhookNotifier 创建 webhook 通知器
func NewWebhookNotifier(url string, timeout time.Duration, maxRetries int, backoffSecs []int, clk clock.Clock, logger logging.Logger) *WebhookNotifier {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if len(backoffSecs) == 0 {
		backoffSecs = []int{1}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookNotifier{
		ctx:    ctx,
		cancel: cancel,
		url:    url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:  maxRetries,
		backoffSecs: backoffSecs,
		clock:       clk,
		logger:      logger,
	}
}

// Send 发送一次事件
func (n *WebhookNotifier) Send(ctx context.Context, ev models.RemediationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("event request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SendWithRetry 带重试的发送
func (n *WebhookNotifier) SendWithRetry(ctx context.Context, ev models.RemediationEvent) error {
	var lastErr error

	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := n.backoffSecs[min(attempt-1, len(n.backoffSecs)-1)]
			n.logger.Debug("Retrying event delivery",
				logging.F("backoff_seconds", backoff),
				logging.F("attempt", attempt),
				logging.F("max_retries", n.maxRetries),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-n.clock.After(time.Duration(backoff) * time.Second):
			}
		}

		err := n.Send(ctx, ev)
		if err == nil {
			atomic.AddInt64(&n.sentCount, 1)
			return nil
		}
		lastErr = err
		n.logger.Warn("Event delivery failed",
			logging.WAN(ev.WanID),
			logging.F("attempt", attempt),
			logging.Err(err),
		)
	}

	atomic.AddInt64(&n.failureCount, 1)
	return lastErr
}

// Notify 异步发送事件，不阻塞监控循环
func (n *WebhookNotifier) Notify(ev models.RemediationEvent) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.SendWithRetry(n.ctx, ev); err != nil {
			n.logger.Error("Failed to deliver remediation event",
				logging.WAN(ev.WanID),
				logging.F("action", string(ev.Action)),
				logging.Err(err),
			)
		}
	}()
}

// Close 等待进行中的发送完成；ctx 先结束时取消剩余发送并返回 ctx 的错误
func (n *WebhookNotifier) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}

// FailureCount 投递失败的事件数
func (n *WebhookNotifier) FailureCount() int64 {
	return atomic.LoadInt64(&n.failureCount)
}

// SentCount 投递成功的事件数
func (n *WebhookNotifier) SentCount() int64 {
	return atomic.LoadInt64(&n.sentCount)
}
