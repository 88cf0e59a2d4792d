package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quantscraper/internal/alerting"
	"quantscraper/internal/storage"
)

// SimulateAlert 推送一条模拟的失败周期告警, 用于验证告警通道。
func (a *App) SimulateAlert(ctx context.Context, exchange, message string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	now := time.Now().UTC()
	note := alerting.Notification{
		Exchange:      exchange,
		CycleID:       uuid.NewString(),
		Status:        storage.StatusFailed,
		StartedAt:     now,
		Error:         message,
		AdditionalMsg: "(simulated)",
	}
	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("dispatch simulated alert: %w", err)
	}
	a.Logger.Info().Str("exchange", exchange).Str("cycle_id", note.CycleID).Msg("simulated alert sent")
	return nil
}
