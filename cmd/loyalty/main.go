package main

import (
	"log"

	"github.com/rodasmf/loyalty/internal/auth"
	"github.com/rodasmf/loyalty/internal/config"
	"github.com/rodasmf/loyalty/internal/handler"
	"github.com/rodasmf/loyalty/internal/ledger"
	"github.com/rodasmf/loyalty/internal/logger"
	"github.com/rodasmf/loyalty/internal/notifier"
	"github.com/rodasmf/loyalty/internal/scheduler"
	"github.com/rodasmf/loyalty/internal/service"
	"github.com/rodasmf/loyalty/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	notif := notifier.NewNotifier(cfg.Notifier, zaplog)
	ledger := ledger.NewLedger(store, notif, zaplog)
	service := service.NewService(store, ledger)
	auth := auth.NewAuth(cfg.Auth, store)

	sched := scheduler.NewScheduler(cfg.Scheduler, ledger, notif, zaplog)
	sched.Start()
	defer sched.Stop()

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
