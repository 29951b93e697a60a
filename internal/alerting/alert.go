package alerting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Alert 封装单个拍品的告警上下文。
type Alert struct {
	Title        string
	DisplayName  string
	URL          string
	Image        string
	Currency     string
	Price        *decimal.Decimal
	EndsAt       *time.Time
	LastChangeAt *time.Time
	Now          time.Time
}

// Notifier 定义告警输送接口: 创建一条新消息（返回其不透明 id）或原地
// 编辑既有消息。编辑对同一 id 幂等。
type Notifier interface {
	Send(ctx context.Context, alert Alert, ping bool) (string, error)
	Edit(ctx context.Context, messageID string, alert Alert) error
}
