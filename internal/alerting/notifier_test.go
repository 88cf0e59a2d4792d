package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote("binance")); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text := received["text"]
	if !strings.Contains(text, "binance") || !strings.Contains(text, "cycle-1") {
		t.Fatalf("text 应包含交易所与周期 id: %q", text)
	}
	if !strings.Contains(text, "whattotrade_binance") {
		t.Fatalf("text 应列出失败的产物: %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote("binance")); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestTelegramNotifierStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote("bybit")); err == nil {
		t.Fatal("非 2xx 响应应报错")
	}
}

func TestThrottledSuppressesWithinCooldown(t *testing.T) {
	rec := &recordingNotifier{}
	throttled := NewThrottled(rec, time.Minute, testLogger())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	throttled.now = func() time.Time { return now }

	ctx := context.Background()
	_ = throttled.Notify(ctx, sampleNote("binance"))
	_ = throttled.Notify(ctx, sampleNote("binance"))
	_ = throttled.Notify(ctx, sampleNote("bybit"))
	if len(rec.notes) != 2 {
		t.Fatalf("冷却期内同一交易所只应发送一次, 实际 %d", len(rec.notes))
	}

	now = now.Add(2 * time.Minute)
	_ = throttled.Notify(ctx, sampleNote("binance"))
	if len(rec.notes) != 3 {
		t.Fatalf("冷却结束后应再次发送, 实际 %d", len(rec.notes))
	}
}

func TestThrottledPropagatesError(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("down")}
	throttled := NewThrottled(rec, 0, testLogger())
	if err := throttled.Notify(context.Background(), sampleNote("binance")); err == nil {
		t.Fatal("下游错误应透传")
	}
}

type recordingNotifier struct {
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, note Notification) error {
	r.notes = append(r.notes, note)
	return r.err
}

func sampleNote(exchange string) Notification {
	return Notification{
		Exchange:        exchange,
		CycleID:         "cycle-1",
		Status:          "failed",
		StartedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:        1500 * time.Millisecond,
		Symbols:         10,
		Rows:            8,
		Dropped:         2,
		FailedArtifacts: []string{"whattotrade_" + exchange},
		Error:           "publish failed",
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
