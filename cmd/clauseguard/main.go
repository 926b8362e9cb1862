package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/config"
	"github.com/clauseguard/clauseguard/internal/database"
	"github.com/clauseguard/clauseguard/internal/logging"
	"github.com/clauseguard/clauseguard/internal/s3storage"
)

var composeFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:          "clauseguard",
		Short:        "ClauseGuard development CLI",
		Long:         "Drives the local stack (postgres, redis, minio), prepares the database and bucket, and runs the api/worker binaries.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file for stack commands")
	root.AddCommand(
		newStackCmd("up", "Start the docker-compose stack", "--build", "-d"),
		newStackCmd("down", "Stop the docker-compose stack"),
		newStackCmd("logs", "Tail logs from docker-compose services", "-f"),
		newMigrateCmd(),
		newTestCmd(),
		newRunCmd("api", "./cmd/api"),
		newRunCmd("worker", "./cmd/worker"),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "clauseguard: %v\n", err)
		os.Exit(1)
	}
}

func newStackCmd(verb, short string, extra ...string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [service...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := append([]string{"compose", "-f", composeFile, verb}, extra...)
			return run(cmd.Context(), "docker", append(composeArgs, args...)...)
		},
	}
}

// newMigrateCmd ensures the database schema and the uploads bucket exist,
// the same bootstrap the api and worker binaries run at startup.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create database tables, indexes and the uploads bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.Init(cfg.LogLevel)
			defer logger.Sync()

			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()
			if err := database.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			logger.Info("schema ensured")

			store, err := s3storage.New(cfg)
			if err != nil {
				return err
			}
			if err := store.EnsureBucket(ctx); err != nil {
				return err
			}
			logger.Info("bucket ensured", zap.String("bucket", cfg.UploadBucket))
			return nil
		},
	}
}

func newTestCmd() *cobra.Command {
	var race bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if len(args) == 0 {
				args = []string{"./..."}
			}
			return run(cmd.Context(), "go", append(goArgs, args...)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable the race detector")
	return cmd
}

func newRunCmd(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run the %s binary (go run %s)", name, path),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), "go", append([]string{"run", path}, args...)...)
		},
	}
}

func run(ctx context.Context, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	return c.Run()
}
