package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/chargeview/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minPushInterval = 10 * time.Second

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Invoke(register),
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    config.Config
	Pusher Pusher `optional:"true"`
	Log    *zap.Logger
}

func register(p Params) {
	if p.Pusher == nil {
		return
	}

	log := p.Log.Named("metrics.push")
	interval := p.Cfg.MetricsPush.Interval
	if interval < minPushInterval {
		interval = minPushInterval
	}

	loop := NewLoop(p.Pusher, prometheus.DefaultGatherer, interval, log)
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics push worker",
				zap.String("exporter", p.Cfg.MetricsPush.Exporter),
				zap.Duration("interval", interval),
			)
			loop.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return loop.Stop(ctx)
		},
	})
}

// Loop pushes on a fixed interval and once more on stop so the last counts
// are not lost.
type Loop struct {
	pusher   Pusher
	gatherer prometheus.Gatherer
	interval time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(pusher Pusher, gatherer prometheus.Gatherer, interval time.Duration, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		pusher:   pusher,
		gatherer: gatherer,
		interval: interval,
		log:      log,
	}
}

func (l *Loop) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.push(ctx, "periodic")
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *Loop) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.push(ctx, "final")
	return nil
}

func (l *Loop) push(ctx context.Context, kind string) {
	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := l.pusher.Push(pushCtx, l.gatherer); err != nil {
		l.log.Warn(kind+" metrics push failed", zap.Error(err))
	}
}
