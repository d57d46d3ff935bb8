// Package scheduler раз в сутки запускает проверку сгорающих лотов и
// рассылает клиентам предупреждения
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rodasmf/loyalty/internal/ledger"
	"github.com/rodasmf/loyalty/internal/notifier"
	"github.com/rodasmf/loyalty/internal/scheduler/config"
)

type Scheduler struct {
	cfg    config.Config
	ledger *ledger.Ledger
	notif  notifier.Notifier
	zaplog *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
	on   bool
}

func NewScheduler(cfg config.Config, l *ledger.Ledger, n notifier.Notifier, zaplog *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		ledger: l,
		notif:  n,
		zaplog: zaplog,
		stop:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled || s.on {
		return
	}
	s.on = true
	s.wg.Add(1)
	go s.run()

	s.zaplog.Info("expiry scheduler started",
		zap.Int("alertDays", s.cfg.AlertDays),
		zap.Int("hour", s.cfg.AlertHour),
		zap.Int("minute", s.cfg.AlertMinute),
	)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.on {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.on = false
	s.zaplog.Info("expiry scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(s.untilNextRun(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.Sweep(context.Background())
			timer.Reset(s.untilNextRun(time.Now()))
		case <-s.stop:
			return
		}
	}
}

// untilNextRun — время до ближайшего запуска в настроенные ЧЧ:ММ
func (s *Scheduler) untilNextRun(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.cfg.AlertHour, s.cfg.AlertMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Sweep находит сгорающие лоты и отправляет по одному письму на клиента.
// Клиенты без адреса пропускаются
func (s *Scheduler) Sweep(ctx context.Context) {
	expiring, err := s.ledger.FindExpiring(ctx, s.cfg.AlertDays)
	if err != nil {
		s.zaplog.Error("expiry sweep failed", zap.Error(err))
		return
	}

	sent := 0
	for _, ec := range expiring {
		if ec.Client.Email == "" {
			continue
		}

		event := notifier.NewEvent(notifier.KindPointsExpiring, ec.Client.Email, ec.Client.FullName())
		for _, lot := range ec.Lots {
			event.Expiring = append(event.Expiring, notifier.ExpiringItem{
				ExpiresOn: lot.ExpiresOn,
				Points:    lot.Balance,
			})
		}

		if err := s.notif.Notify(ctx, event); err != nil {
			s.zaplog.Error("expiry notification failed",
				zap.Int("client", ec.Client.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	s.zaplog.Info("expiry sweep completed",
		zap.Int("clients", len(expiring)),
		zap.Int("sent", sent),
	)
}
