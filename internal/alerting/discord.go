package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/logging"
)

const (
	colorTracking    = 0x5865f2
	colorClosingSoon = 0xff4d4f

	closingWindow = 30 * time.Minute
)

// WebhookNotifier 通过 Discord webhook 推送嵌入消息。
type WebhookNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
	logger     zerolog.Logger
}

// NewWebhookNotifier 构造 Discord 告警器。
func NewWebhookNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		webhookURL: strings.TrimRight(webhookURL, "/"),
		username:   "Auction Tracker",
		client:     &http.Client{Timeout: timeout},
		logger:     logging.Component(logger, "alert_discord"),
	}
}

// Send posts a new message and returns its id. The ?wait=true flag makes
// Discord return the created message instead of a 204.
func (n *WebhookNotifier) Send(ctx context.Context, alert Alert, ping bool) (string, error) {
	if n.webhookURL == "" {
		return "", errors.New("webhook url not configured")
	}

	payload := buildPayload(n.username, alert, ping)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("discord 响应码异常: %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("discord 未返回消息 id")
	}

	n.logger.Info().Str("message_id", created.ID).Bool("ping", ping).Str("lot", alert.URL).Msg("告警已发送 (Discord)")
	return created.ID, nil
}

// Edit patches an existing tracking message in place.
func (n *WebhookNotifier) Edit(ctx context.Context, messageID string, alert Alert) error {
	if n.webhookURL == "" {
		return errors.New("webhook url not configured")
	}
	if messageID == "" {
		return errors.New("message id required")
	}

	payload := buildPayload(n.username, alert, false)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	url := fmt.Sprintf("%s/messages/%s", n.webhookURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord 响应码异常: %d", resp.StatusCode)
	}

	n.logger.Debug().Str("message_id", messageID).Str("lot", alert.URL).Msg("跟踪消息已更新")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
