package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sangkips/tillsync/pkg/clock"
)

// ProberConfig configures a health-endpoint prober.
type ProberConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Prober polls a health URL and feeds the result into a Publisher. A 2xx
// answer means online; anything else, including transport errors, offline.
type Prober struct {
	cfg       ProberConfig
	client    *http.Client
	clock     clock.Clock
	publisher *Publisher
	logger    *slog.Logger

	mu     sync.Mutex
	timer  clock.Timer
	ctx    context.Context
	cancel context.CancelFunc
}

// NewProber creates a prober. client may be nil.
func NewProber(cfg ProberConfig, client *http.Client, c clock.Clock, publisher *Publisher, logger *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		cfg:       cfg,
		client:    client,
		clock:     c,
		publisher: publisher,
		logger:    logger.With("component", "connectivity"),
	}
}

// Check probes once and publishes the result.
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	online := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err == nil {
		var resp *http.Response
		resp, err = p.client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			online = resp.StatusCode >= 200 && resp.StatusCode < 300
		}
	}

	if p.publisher.Set(online) {
		if online {
			p.logger.Info("remote reachable", "url", p.cfg.URL)
		} else {
			p.logger.Warn("remote unreachable", "url", p.cfg.URL, "error", err)
		}
	}
	return online
}

// Start probes immediately and then on every interval until Stop or ctx is
// done.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.tick()
}

// Stop halts polling.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Prober) tick() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	p.Check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	p.timer = p.clock.AfterFunc(p.cfg.Interval, p.tick)
}
