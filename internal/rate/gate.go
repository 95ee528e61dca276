package rate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"antiochus/pkg/contract"
)

// LimitKey: 限流分组键（通常为远端主机名）。
type LimitKey string

// Limits: 每分组的限额配置。RPS<=0 表示该分组不限速。
type Limits struct {
	RPS   float64 // 每秒请求数
	Burst int     // 突发容量；<=0 时取 1
}

// Ask: 一次放行申请。
type Ask struct {
	Key      LimitKey
	Requests int // 默认为 1；不得超过 Burst
}

// Gate: 限流闸门（并发安全）。
type Gate interface {
	// Wait: 阻塞直到额度可用或 ctx 取消；申请超过突发容量时快速失败。
	Wait(ctx context.Context, a Ask) error
	// Try: 非阻塞尝试；不足时返回 false。
	Try(a Ask) bool
}

// NewGate 从静态配置构造闸门。
// 未在 m 中出现的 key 使用 def 作为限额（def.RPS<=0 时不限速）。
func NewGate(m map[LimitKey]Limits, def Limits) Gate {
	g := &gate{def: def, m: make(map[LimitKey]*rate.Limiter, len(m))}
	for k, lim := range m {
		g.m[k] = newLimiter(lim)
	}
	return g
}

type gate struct {
	def Limits
	mu  sync.Mutex
	m   map[LimitKey]*rate.Limiter
}

// newLimiter 为 nil 表示不限速。
func newLimiter(lim Limits) *rate.Limiter {
	if lim.RPS <= 0 {
		return nil
	}
	burst := lim.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(lim.RPS), burst)
}

func (g *gate) get(key LimitKey) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.m[key]
	if !ok {
		l = newLimiter(g.def)
		g.m[key] = l
	}
	return l
}

func normalize(a Ask) (Ask, error) {
	if a.Requests == 0 {
		a.Requests = 1
	}
	if a.Requests < 0 {
		return a, fmt.Errorf("%w: requests must be >=1", contract.ErrInvalidInput)
	}
	return a, nil
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	a, err := normalize(a)
	if err != nil {
		return err
	}
	l := g.get(a.Key)
	if l == nil {
		return ctx.Err()
	}
	if a.Requests > l.Burst() {
		return fmt.Errorf("%w: requests %d exceed burst %d for %s", contract.ErrInvalidInput, a.Requests, l.Burst(), a.Key)
	}
	return l.WaitN(ctx, a.Requests)
}

func (g *gate) Try(a Ask) bool {
	a, err := normalize(a)
	if err != nil {
		return false
	}
	l := g.get(a.Key)
	if l == nil {
		return true
	}
	return l.AllowN(timeNow(), a.Requests)
}
