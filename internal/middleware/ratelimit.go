package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/wellshelf/internal/model"
)

// RateLimiterConfig はクライアントIPごとのトークンバケット設定。
type RateLimiterConfig struct {
	Rate    rate.Limit    // 補充レート（req/sec）
	Burst   int           // バケット容量
	IdleTTL time.Duration // この時間アクセスのないクライアントは破棄する
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数から設定を作る。
// バケット容量は1分ぶん。1未満は1に丸める。
func RateLimiterConfigPerMinute(perMinute int) RateLimiterConfig {
	perMinute = max(perMinute, 1)
	return RateLimiterConfig{
		Rate:    rate.Every(time.Minute / time.Duration(perMinute)),
		Burst:   perMinute,
		IdleTTL: 10 * time.Minute,
	}
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter はクライアントIPごとのレート制限を行う。
// Stop を呼ぶまでアイドルなクライアントを定期的に掃除する。
type RateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor

	stopOnce sync.Once
	done     chan struct{}
}

// NewRateLimiter はRateLimiterを生成し、掃除用のゴルーチンを開始する。
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		cfg:      cfg,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		done:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop は掃除用のゴルーチンを止める。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware はレート制限ミドルウェアを返す。
// プロキシ配下ではchiのRealIPの後に置くこと。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			if wait, ok := rl.take(ip); !ok {
				slog.Warn("rate limit exceeded",
					slog.String("remote_ip", ip),
					slog.String("path", r.URL.Path),
					slog.Duration("retry_after", wait),
				)
				w.Header().Set("Retry-After", retryAfterSeconds(wait))
				WriteErrorResponse(w, r, http.StatusTooManyRequests, model.NewRateLimitedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Clients は現在追跡しているクライアント数を返す。
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// take はクライアントのトークンを1つ消費する。
// 消費できない場合は次のトークンまでの待ち時間と false を返す。
func (rl *RateLimiter) take(key string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)}
		rl.visitors[key] = v
	}
	v.seen = now
	rl.mu.Unlock()

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Minute, false
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return wait, false
	}
	return 0, true
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep はIdleTTLより長くアクセスのないクライアントを削除する。
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.cfg.IdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

// ClientIP はリクエスト元のIPアドレスを返す。
// RemoteAddrにポートがない場合（RealIPで書き換えられた場合など）はそのまま返す。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds は待ち時間をRetry-Afterヘッダー用の秒数（最低1）に切り上げる。
func retryAfterSeconds(wait time.Duration) string {
	sec := int(math.Ceil(wait.Seconds()))
	return strconv.Itoa(max(sec, 1))
}
