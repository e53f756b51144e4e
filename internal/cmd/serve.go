package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bobarin/viralforge/internal/api"
	"github.com/bobarin/viralforge/internal/config"
	"github.com/bobarin/viralforge/internal/db"
	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/production"
	"github.com/bobarin/viralforge/internal/queue"
	"github.com/bobarin/viralforge/internal/storage"
	"github.com/bobarin/viralforge/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the run worker and the optional schedule",
	Long: `Serve the runs API backed by PostgreSQL and a Redis queue.

With WORKER_ENABLED the same process consumes the queue, writes bundles to
OUTPUT_DIR and, when Supabase storage is configured, uploads them. With
RUN_SCHEDULE set (cron syntax or @every) a run for SCHEDULED_TOPIC is queued
on that schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("Starting viralforge API...")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	database, err := db.New(cfg.Server.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	migrateCtx, cancelMigrate := context.WithTimeout(cmd.Context(), 30*time.Second)
	err = database.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		return err
	}

	q, err := queue.New(cfg.Server.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	var (
		stor   *storage.Storage
		signer api.URLSigner
	)
	if cfg.Storage.Enabled() {
		stor = storage.New(cfg.Storage)
		signer = stor
		log.Printf("Bundle upload enabled (bucket: %s)", cfg.Storage.Bucket)
	} else {
		log.Println("Supabase storage not configured, bundles stay in " + cfg.Pipeline.OutputDir)
	}

	handler := api.NewHandler(database, q, signer, cfg.Pipeline)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.Server.BackendAPIKey,
		CorsAllowedOrigins: cfg.Server.CorsAllowedOrigins,
	})

	if cfg.Server.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.APIPort,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var work func(context.Context)
	if cfg.Server.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")
		w := worker.New(database, q, production.NewFromConfig(cfg), afero.NewOsFs())
		if stor != nil {
			w.WithUploader(stor, stor.Bucket)
		}
		work = func(ctx context.Context) {
			w.Start(ctx, cfg.Server.MaxConcurrentJobs)
		}
	}
	var schedule func() (*worker.Scheduler, error)
	if cfg.Server.RunSchedule != "" {
		schedule = func() (*worker.Scheduler, error) {
			return worker.NewScheduler(cfg.Server.RunSchedule, scheduledBrief(cfg), database, q)
		}
	}
	stopBackground, err := startBackground(ctx, work, schedule)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("API server listening on :%s", cfg.Server.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down server...")
	case err := <-serveErr:
		stop()
		stopBackground()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	stopBackground()
	log.Println("Server exited")
	return nil
}

// startBackground runs work in its own goroutine and starts the schedule.
// When the schedule cannot be built, work is cancelled and awaited before
// the error is returned. The returned func stops both and blocks until work
// has exited.
func startBackground(parent context.Context, work func(context.Context), schedule func() (*worker.Scheduler, error)) (func(), error) {
	ctx, cancel := context.WithCancel(parent)
	var wg conc.WaitGroup
	if work != nil {
		wg.Go(func() { work(ctx) })
	}

	var sched *worker.Scheduler
	if schedule != nil {
		var err error
		if sched, err = schedule(); err != nil {
			cancel()
			wg.Wait()
			return nil, err
		}
		sched.Start()
	}

	return func() {
		if sched != nil {
			sched.Stop()
		}
		cancel()
		wg.Wait()
	}, nil
}

// scheduledBrief is the brief queued on every scheduled run.
func scheduledBrief(cfg *config.Config) models.Brief {
	topic := cfg.Server.ScheduledTopic
	if topic == "" {
		topic = cfg.Pipeline.DefaultTopic
	}
	return models.Brief{
		Topic:        topic,
		Style:        cfg.Pipeline.Style,
		Tone:         cfg.Pipeline.Tone,
		Platform:     cfg.Pipeline.Platform,
		BurnCaptions: cfg.Pipeline.BurnCaptions,
	}
}
