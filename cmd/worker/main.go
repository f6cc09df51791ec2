// cmd/worker consumes campaign lifecycle events from RabbitMQ and keeps an
// audit trail in the log.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/config"
	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/model"
	"github.com/unclebandit/activity-sim/internal/queue"
)

const summaryEvery = time.Minute

// tally counts lifecycle events by type and remembers which campaigns are
// still open.
type tally struct {
	mu     sync.Mutex
	byType map[string]int
	open   map[string]bool
}

func newTally() *tally {
	return &tally{byType: make(map[string]int), open: make(map[string]bool)}
}

func (t *tally) Observe(ev model.CampaignEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byType[ev.Type]++
	switch {
	case ev.Status == model.StatusPending || ev.Status == model.StatusRunning:
		t.open[ev.CampaignID] = true
	case ev.Status.Terminal():
		delete(t.open, ev.CampaignID)
	}
}

// Fields renders the tally as zap fields in a stable order.
func (t *tally) Fields() []zap.Field {
	t.mu.Lock()
	defer t.mu.Unlock()

	types := make([]string, 0, len(t.byType))
	for typ := range t.byType {
		types = append(types, typ)
	}
	sort.Strings(types)

	fields := make([]zap.Field, 0, len(types)+1)
	for _, typ := range types {
		fields = append(fields, zap.Int(typ, t.byType[typ]))
	}
	return append(fields, zap.Int("open_campaigns", len(t.open)))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.AMQPURL == "" {
		logger.Fatal("AMQP_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := queue.DialAMQP(cfg.AMQPURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer q.Close()

	t := newTally()
	if err := queue.StartLifecycleSubscriber(q, logger, t.Observe); err != nil {
		logger.Fatal("failed to subscribe", zap.Error(err))
	}
	logger.Info("worker running, waiting for campaign events")

	ticker := time.NewTicker(summaryEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logger.Info("event summary", t.Fields()...)
		case <-ctx.Done():
			logger.Info("worker stopping", t.Fields()...)
			return
		}
	}
}
