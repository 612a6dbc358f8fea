package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/translationdb/dbsync/internal/sync"
	"github.com/translationdb/dbsync/internal/utils"
	"github.com/translationdb/dbsync/internal/version"
)

var (
	home, _            = os.UserHomeDir()
	defaultLogFilePath = filepath.Join(home, ".dbsync", "logs", "dbsync.log")
	defaultBucket      = "ts-db-stream"
	defaultRegion      = "us-east-1"
	defaultSyncPath    = "database"
	configFileName     = "config"
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "dbsync",
	Short:   "Sync the translation database folder to an S3 bucket",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("quiet") {
			logLevel.Set(slog.LevelWarn)
		}

		// The original deployment keeps bucket keys in a .env next to the
		// data; prefer those over ambient AWS config when present.
		if err := godotenv.Overload(".env"); err == nil {
			slog.Debug("loaded credentials from .env")
		}

		cfg := &sync.Config{
			RootDir:      viper.GetString("path"),
			Bucket:       viper.GetString("bucket"),
			Prefix:       viper.GetString("prefix"),
			Region:       viper.GetString("region"),
			Endpoint:     viper.GetString("endpoint"),
			ManifestPath: viper.GetString("manifest"),
			MaxWorkers:   viper.GetInt("workers"),
			Incremental:  !viper.GetBool("full"),
			AccessKey:    os.Getenv("ACCESSKEY_ID"),
			SecretKey:    os.Getenv("SECRET_ACCESSKEY_ID"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// all good now, show header
		cmd.SilenceUsage = true
		showHeader()

		syncer, err := sync.New(cfg)
		if err != nil {
			return err
		}

		summary, err := syncer.Run(cmd.Context())
		if err != nil {
			return err
		}
		if !summary.Ok() {
			return fmt.Errorf("%d file(s) failed to upload", summary.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("path", "p", defaultSyncPath, "Local folder to sync")
	rootCmd.Flags().StringP("bucket", "b", defaultBucket, "S3 bucket name")
	rootCmd.Flags().String("prefix", "", "S3 key prefix (default: bucket root)")
	rootCmd.Flags().String("region", defaultRegion, "AWS region")
	rootCmd.Flags().String("endpoint", "", "Custom S3 endpoint (e.g. MinIO)")
	rootCmd.Flags().IntP("workers", "w", 4, "Parallel upload workers")
	rootCmd.Flags().Bool("full", false, "Disable incremental sync and upload everything")
	rootCmd.Flags().String("manifest", "", "Sync manifest path (default: <path>/"+sync.DefaultManifestName+")")
	rootCmd.Flags().BoolP("quiet", "q", false, "Suppress verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", filepath.Join(home, ".dbsync", "config.json"), "Config file")
}

func main() {
	logDir := filepath.Dir(defaultLogFilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(defaultLogFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	logLevel.Set(slog.LevelInfo)
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	// config path
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".dbsync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper
	viper.BindPFlag("path", cmd.Flags().Lookup("path"))
	viper.BindPFlag("bucket", cmd.Flags().Lookup("bucket"))
	viper.BindPFlag("prefix", cmd.Flags().Lookup("prefix"))
	viper.BindPFlag("region", cmd.Flags().Lookup("region"))
	viper.BindPFlag("endpoint", cmd.Flags().Lookup("endpoint"))
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("full", cmd.Flags().Lookup("full"))
	viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	viper.BindPFlag("quiet", cmd.Flags().Lookup("quiet"))

	// Set up environment variables
	viper.SetEnvPrefix("DBSYNC")
	viper.AutomaticEnv()

	return nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).
		Printf("dbsync %s\n", version.Short())
}
