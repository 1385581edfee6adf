package services

import (
	"context"
	"fmt"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/robfig/cron/v3"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Watchdog periodically reports connection and store state and probes
// the read-model cache. Purely observational; it never reconnects or
// restarts anything itself.
type Watchdog struct {
	cron     *cron.Cron
	conn     domain.Connection
	store    *NotificationStore
	pinger   Pinger
	interval time.Duration
	log      logger.Logger
}

func NewWatchdog(conn domain.Connection, store *NotificationStore, pinger Pinger,
	interval time.Duration, log logger.Logger) *Watchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watchdog{
		cron:     cron.New(),
		conn:     conn,
		store:    store,
		pinger:   pinger,
		interval: interval,
		log:      log,
	}
}

func (w *Watchdog) Start() error {
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), w.tick); err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

func (w *Watchdog) Stop() {
	w.cron.Stop()
}

func (w *Watchdog) tick() {
	w.log.Info("Sync heartbeat",
		"connected", w.conn.Connected(),
		"unread", w.store.UnreadCount())

	if w.pinger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.pinger.Ping(ctx); err != nil {
		w.log.Warn("Read-model cache unreachable", "error", err)
	}
}
