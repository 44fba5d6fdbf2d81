package operation

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/rayking12/celo-simple-donation/internal/logger"
)

// NewPool 创建写操作协程池
//
// 协程池为非阻塞模式，没有空闲协程时 Submit 立即返回 ants.ErrPoolOverload，
// 调用方不会因为等待交易确认的写操作而阻塞。
func NewPool(size int) (*ants.Pool, error) {
	if size <= 0 {
		size = 16
	}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(r interface{}) {
			logger.Error("Write worker panicked: %v", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return pool, nil
}
