package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification 封装一次异常采集周期的告警上下文。
type Notification struct {
	Exchange        string
	CycleID         string
	Status          string
	StartedAt       time.Time
	Duration        time.Duration
	Symbols         int
	Rows            int
	Dropped         int
	FailedArtifacts []string
	Error           string
	AdditionalMsg   string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().
		Str("exchange", note.Exchange).
		Str("cycle_id", note.CycleID).
		Str("status", note.Status).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[quantscraper %s]\n", strings.ToUpper(note.Status)))
	builder.WriteString(fmt.Sprintf("Exchange: %s\n", note.Exchange))
	builder.WriteString(fmt.Sprintf("Cycle: %s\n", note.CycleID))
	if !note.StartedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Started: %s UTC\n", note.StartedAt.UTC().Format(time.RFC3339)))
	}
	if note.Duration > 0 {
		builder.WriteString(fmt.Sprintf("Duration: %s\n", note.Duration.Round(time.Millisecond)))
	}
	builder.WriteString(fmt.Sprintf("Symbols: %d, rows: %d, dropped: %d\n", note.Symbols, note.Rows, note.Dropped))
	if len(note.FailedArtifacts) > 0 {
		builder.WriteString(fmt.Sprintf("Failed artifacts: %s\n", strings.Join(note.FailedArtifacts, ",")))
	}
	if note.Error != "" {
		builder.WriteString(fmt.Sprintf("Error: %s\n", note.Error))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

// Throttled 在冷却期内丢弃同一交易所的重复告警。
type Throttled struct {
	next     Notifier
	cooldown time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottled wraps next; a non-positive cooldown forwards everything.
func NewThrottled(next Notifier, cooldown time.Duration, logger zerolog.Logger) *Throttled {
	return &Throttled{
		next:     next,
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger.With().Str("component", "alert_throttle").Logger(),
		last:     make(map[string]time.Time),
	}
}

// Notify implements Notifier.
func (t *Throttled) Notify(ctx context.Context, note Notification) error {
	if t.cooldown > 0 {
		now := t.now()
		t.mu.Lock()
		prev, seen := t.last[note.Exchange]
		if seen && now.Sub(prev) < t.cooldown {
			t.mu.Unlock()
			t.logger.Debug().Str("exchange", note.Exchange).Str("cycle_id", note.CycleID).Msg("alert suppressed by cooldown")
			return nil
		}
		t.last[note.Exchange] = now
		t.mu.Unlock()
	}
	return t.next.Notify(ctx, note)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*Throttled)(nil)
)
