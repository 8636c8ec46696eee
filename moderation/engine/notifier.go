package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/commentum/commentum/models"
)

// Notifier delivers a copy of an audit record to an external channel.
// Delivery is best effort; the engine never blocks a command on it.
type Notifier interface {
	Send(ctx context.Context, rec *models.AuditRecord) error
}

// re-writes HTTP client ERROR to WARN level (because of retries)
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

// Retries on connection errors, 5xx (except 501), and 429 with
// Retry-After respected. Intermediate failures log at WARN.
func robustHTTPClient(logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}

// SlackNotifier posts audit records to a Slack "incoming webhook". The
// webhook must already be configured in the Slack workspace. A local
// rate limiter keeps a burst of commands from tripping Slack's limits.
type SlackNotifier struct {
	SlackWebhookURL string

	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		client:          robustHTTPClient(logger),
		limiter:         rate.NewLimiter(rate.Limit(1), 5),
		logger:          logger,
	}
}

func (n *SlackNotifier) Send(ctx context.Context, rec *models.AuditRecord) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	n.logger.Debug("sending slack notification", "action", rec.Action)
	return n.sendSlackMsg(ctx, slackBody(rec))
}

type slackWebhookBody struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(slackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(rec *models.AuditRecord) string {
	msg := fmt.Sprintf("⚠️ Moderation Action ⚠️\n`%s` by `%s` on `%s`\n", rec.Action, rec.ActorID, rec.TargetID)
	if rec.Reason != "" {
		msg += fmt.Sprintf("Reason: %s\n", rec.Reason)
	}
	if rec.Notes != "" {
		msg += fmt.Sprintf("Notes: %s\n", rec.Notes)
	}
	return msg
}
