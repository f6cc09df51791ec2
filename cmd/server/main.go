// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/activity"
	"github.com/unclebandit/activity-sim/internal/config"
	"github.com/unclebandit/activity-sim/internal/content"
	"github.com/unclebandit/activity-sim/internal/controller"
	"github.com/unclebandit/activity-sim/internal/db"
	"github.com/unclebandit/activity-sim/internal/handler"
	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/queue"
	"github.com/unclebandit/activity-sim/internal/random"
	"github.com/unclebandit/activity-sim/internal/repository"
	"github.com/unclebandit/activity-sim/internal/repository/memory"
	"github.com/unclebandit/activity-sim/internal/service"
)

const demoBots = 200

type stores struct {
	campaigns repository.CampaignRepositoryInterface
	records   repository.ActivityRecordRepositoryInterface
	personas  repository.PersonaRepositoryInterface
	content   repository.ContentRepositoryInterface
	conn      *sql.DB
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st.conn != nil {
		defer st.conn.Close()
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("content generator ready", zap.String("provider", cfg.Content.Provider))

	q, err := newQueue(cfg, logger)
	if err != nil {
		return err
	}

	src := random.New(cfg.Seed)
	disp, err := activity.NewDispatcher(&activity.Deps{
		Personas:  st.personas,
		Content:   st.content,
		Generator: gen,
		Scorer:    activity.NewScorer(cfg.ScoreBands, src),
		Rand:      src,
	})
	if err != nil {
		return err
	}

	svc := service.NewCampaignService(service.Options{
		Campaigns:      st.campaigns,
		Records:        st.records,
		Personas:       st.personas,
		Dispatcher:     disp,
		Queue:          q,
		Rand:           src,
		JitterFraction: cfg.JitterFraction,
		BatchSize:      cfg.BatchSize,
		TimeScale:      cfg.TimeScale,
		Logger:         logger,
	})
	if n, err := svc.RecoverInterrupted(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Warn("failed campaigns left over from a previous run", zap.Int("count", n))
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: controller.Routes(
			&controller.CampaignController{CampaignService: svc, Logger: logger},
			&handler.CampaignHandler{Service: svc, Logger: logger},
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("engine shutdown", zap.Error(err))
	}
	if err := q.Close(); err != nil {
		logger.Error("queue close", zap.Error(err))
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store == "memory" {
		personas := memory.NewPersonaRepository()
		contentRepo := memory.NewContentRepository()
		memory.SeedDemo(personas, contentRepo, demoBots, time.Now())
		logger.Info("using in-memory store", zap.Int("bots", demoBots))
		return &stores{
			campaigns: memory.NewCampaignRepository(),
			records:   memory.NewActivityRecordRepository(),
			personas:  personas,
			content:   contentRepo,
		}, nil
	}

	conn, err := db.Open(ctx, cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &stores{
		campaigns: &repository.CampaignRepository{DB: conn},
		records:   &repository.ActivityRecordRepository{DB: conn},
		personas:  &repository.PersonaRepository{DB: conn},
		content:   &repository.ContentRepository{DB: conn},
		conn:      conn,
	}, nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (content.Generator, error) {
	if cfg.Content.Provider == "gemini" {
		return content.NewGeminiGenerator(ctx, cfg.Content.APIKey, cfg.Content.Model,
			cfg.Content.Temperature, cfg.Content.MaxTokens)
	}
	return content.NewTemplateGenerator(), nil
}

// newQueue publishes to RabbitMQ for cmd/worker when AMQP_URL is set.
// Otherwise events are logged in-process.
func newQueue(cfg *config.Config, logger *zap.Logger) (queue.Queue, error) {
	if cfg.AMQPURL != "" {
		return queue.DialAMQP(cfg.AMQPURL, logger)
	}
	q := queue.NewInMemoryQueue(logger)
	if err := queue.StartLifecycleSubscriber(q, logger, nil); err != nil {
		return nil, err
	}
	return q, nil
}
