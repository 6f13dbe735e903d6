package watch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"opinion-radar/internal/model"
)

// SchedulerConfig 控制扫描周期。
type SchedulerConfig struct {
	ScanSeconds int `yaml:"scan_seconds" json:"scan_seconds"`
}

// WatchRunner 抽象单次订阅执行，便于测试替换。
type WatchRunner interface {
	Run(ctx context.Context, w model.Watch) model.RunSummary
}

// Scheduler 以固定周期扫描注册表，逐个同步执行到期订阅。
// 单个订阅的失败只记录日志，不影响同一轮的其他订阅；
// last_run 仅在成功后推进，失败的订阅下一轮即重试。
type Scheduler struct {
	registry *Registry
	runner   WatchRunner
	scan     time.Duration

	newTicker func(time.Duration) ticker
	now       func() time.Time
	log       *logrus.Entry
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewScheduler 创建调度器，默认 60 秒扫描一次。
func NewScheduler(registry *Registry, runner WatchRunner, cfg SchedulerConfig) *Scheduler {
	scan := 60 * time.Second
	if cfg.ScanSeconds > 0 {
		scan = time.Duration(cfg.ScanSeconds) * time.Second
	}
	return &Scheduler{
		registry:  registry,
		runner:    runner,
		scan:      scan,
		newTicker: defaultTicker,
		now:       time.Now,
		log:       logrus.WithField("component", "watch-scheduler"),
	}
}

// Start 启动扫描循环，直到上下文取消。
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	tick := s.newTicker(s.scan)
	ch := tick.C()

	g.Go(func() error {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				s.Tick(ctx)
			drain:
				for {
					select {
					case <-ch:
						continue
					default:
						break drain
					}
				}
			}
		}
	})

	return g.Wait()
}

// Tick 执行一轮扫描：运行所有到期订阅，成功后推进 last_run。
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().Unix()
	for _, w := range s.registry.Due(now) {
		if ctx.Err() != nil {
			return
		}
		summary := s.runner.Run(ctx, w)
		if summary.OK {
			s.registry.MarkRun(w.ID, now)
			s.log.Infof("watch %q ran: triggered=%v total=%d valid=%d pos=%d neg=%d",
				w.Keyword, summary.Triggered, summary.Total, summary.Valid, summary.Positive, summary.Negative)
		} else {
			s.log.Errorf("watch %q failed: %s", w.Keyword, summary.Message)
		}
	}
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }
