package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/averhoeven/roster-management/internal/platform"
	"github.com/averhoeven/roster-management/internal/syncqueue"
	"github.com/averhoeven/roster-management/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers, currently the role sync replayer.`,
}

var syncWorkerCmd = &cobra.Command{
	Use:   "sync",
	Short: "Start the role sync worker",
	Long: `Start the worker that drains the Redis sync queue, replaying role
grants and revokes that failed during roster operations.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSyncWorker()
	},
}

var (
	workerRedisAddr   string
	workerMaxAttempts int
)

func startSyncWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	// Command line flags override config values.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     getStringFlag(workerRedisAddr, config.Redis.Addr),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	client := platform.NewClient(platform.Config{
		BaseURL:     config.Platform.BaseURL,
		BotToken:    config.Platform.BotToken,
		CallTimeout: config.Platform.CallTimeout,
		MaxRetries:  config.Platform.MaxRetries,
	}, log)

	queue := syncqueue.NewQueue(redisClient, log)
	worker := syncqueue.NewWorker(queue, client, syncqueue.Config{
		MaxAttempts:  getIntFlag(workerMaxAttempts, config.Sync.MaxAttempts),
		RetryBackoff: config.Sync.RetryBackoff,
	}, log)

	log.Info("starting sync worker",
		"redis_addr", getStringFlag(workerRedisAddr, config.Redis.Addr),
		"max_attempts", getIntFlag(workerMaxAttempts, config.Sync.MaxAttempts),
		"retry_backoff", config.Sync.RetryBackoff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(workerDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("sync worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	log.Info("received signal, shutting down sync worker", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-workerDone:
		log.Info("sync worker shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn("shutdown timeout reached, forcing exit")
	}

	if err := redisClient.Close(); err != nil {
		log.Warn("error closing redis connection", "error", err)
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	syncWorkerCmd.Flags().StringVar(&workerRedisAddr, "redis-addr", "", "Redis address (overrides config)")
	syncWorkerCmd.Flags().IntVar(&workerMaxAttempts, "max-attempts", 0, "Attempts before a job is dead-lettered (overrides config)")

	workerCmd.AddCommand(syncWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
