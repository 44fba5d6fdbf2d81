package notify

import (
	"errors"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/logger"
)

// Status 通知类型
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Topic 通知在事件总线上的主题
const Topic = "notify:toast"

// ConnectorMessage 未连接钱包时展示的固定提示
const ConnectorMessage = "Please connect a wallet: no signing account is configured."

// DefaultDuration 默认展示时长
const DefaultDuration = 3 * time.Second

// Notification 短暂展示的提示消息
type Notification struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ExpiresAt 返回消息过期时间
func (n Notification) ExpiresAt() time.Time {
	return n.CreatedAt.Add(n.Duration)
}

// Sink 通知接收方，只管发送不关心结果
type Sink interface {
	Notify(n Notification)
}

// Bus 基于事件总线的通知分发
type Bus struct {
	bus      evbus.Bus
	duration time.Duration
}

// NewBus 创建通知分发器, duration 为0时使用默认时长
func NewBus(bus evbus.Bus, duration time.Duration) *Bus {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Bus{bus: bus, duration: duration}
}

// Notify 补全字段后发布通知
func (b *Bus) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Duration <= 0 {
		n.Duration = b.duration
	}
	b.bus.Publish(Topic, n)
}

// Success 发布成功通知
func (b *Bus) Success(description string) {
	b.Notify(Notification{Title: "Success", Description: description, Status: StatusSuccess})
}

// Error 发布失败通知
func (b *Bus) Error(err error) {
	b.Notify(Notification{Title: "Error", Description: Describe(err), Status: StatusError})
}

// Subscribe 订阅通知
func (b *Bus) Subscribe(fn func(Notification)) error {
	return b.bus.Subscribe(Topic, fn)
}

// ErrorHandler 返回所有合约操作共用的错误处理函数
func (b *Bus) ErrorHandler() contract.ErrorHandler {
	return func(functionName string, err error) {
		logger.Error("Contract call %s failed: %v", functionName, err)
		b.Error(err)
	}
}

// Describe 将错误转换为展示文案
//
// 钱包类错误使用固定文案，合约调用错误原样展示。
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, chain.ErrConnectorNotFound) {
		return ConnectorMessage
	}
	return err.Error()
}

// LogSink 将通知写入日志
func LogSink(n Notification) {
	if n.Status == StatusError {
		logger.Warn("[notify] %s: %s", n.Title, n.Description)
		return
	}
	logger.Info("[notify] %s: %s", n.Title, n.Description)
}
