package authsession

import (
	"sync"
	"time"

	"github.com/platefeed/authsession/jwt"
	"go.uber.org/zap"
)

// expirationMonitor periodically inspects the access token's embedded
// expiry and proactively triggers renewal when it nears. It starts only
// once both a token and an authenticated user exist, and its lifecycle is
// owned by the Manager: logout stops it synchronously so no timer
// survives a session switch.
type expirationMonitor struct {
	cfg     MonitorConfig
	tokenFn func() string
	renew   func()
	metrics *Metrics
	logger  *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newExpirationMonitor(
	cfg MonitorConfig,
	tokenFn func() string,
	renew func(),
	metrics *Metrics,
	logger *zap.Logger,
) *expirationMonitor {
	return &expirationMonitor{
		cfg:     cfg,
		tokenFn: tokenFn,
		renew:   renew,
		metrics: metrics,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

func (em *expirationMonitor) start() {
	em.wg.Add(1)
	go em.run()
}

func (em *expirationMonitor) run() {
	defer em.wg.Done()

	ticker := time.NewTicker(em.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			em.inspect()
		case <-em.stopCh:
			return
		}
	}
}

// inspect decodes the current token's expiry and fires a renewal when the
// remaining lifetime is under the threshold. Decode failures are
// non-fatal; the cycle is skipped and the interceptor remains the
// authoritative fallback.
func (em *expirationMonitor) inspect() {
	tok := em.tokenFn()
	if tok == "" {
		return
	}

	remaining, err := jwt.Remaining(tok, time.Now())
	if err != nil {
		em.metrics.Inc(MetricMonitorDecodeSkipped)
		em.logger.Debug("authsession: skipping expiry check, token not decodable", zap.Error(err))
		return
	}

	if remaining < em.cfg.RenewThreshold {
		em.metrics.Inc(MetricMonitorRenewTriggered)
		em.logger.Debug("authsession: proactive renewal triggered",
			zap.Duration("remaining", remaining),
		)
		em.renew()
	}
}

// stop halts the ticker loop and waits for it to exit. Idempotent.
func (em *expirationMonitor) stop() {
	em.stopOnce.Do(func() {
		close(em.stopCh)
	})
	em.wg.Wait()
}
