package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SloeberX/auction-tracker/internal/alerting"
)

// SimulateAlert 通过伪造的拍品数据驱动一次完整的 webhook 推送流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	settings, err := store.LoadNotifySettings()
	if err != nil {
		return err
	}
	if settings.WebhookURL == "" {
		return errors.New("未配置 webhook")
	}

	price := decimal.NewFromFloat(opts.Price)
	if price.IsNegative() {
		return errors.New("price 不能为负")
	}

	now := time.Now().UTC()
	endsIn := opts.EndsIn
	if endsIn <= 0 {
		endsIn = time.Hour
	}
	ends := now.Add(endsIn)
	lastChange := now

	alert := alerting.Alert{
		Title:        "Test embed",
		DisplayName:  "Auction Tracker",
		URL:          "https://example.com/",
		Currency:     "EUR",
		Price:        &price,
		EndsAt:       &ends,
		LastChangeAt: &lastChange,
		Now:          now,
	}

	notifier := alerting.NewWebhookNotifier(settings.WebhookURL, a.Config.Notify.RequestTimeout, a.Logger)
	id, err := notifier.Send(ctx, alert, true)
	if err != nil {
		return err
	}

	a.Logger.Info().Str("message_id", id).Msg("模拟告警已发送")
	return nil
}
