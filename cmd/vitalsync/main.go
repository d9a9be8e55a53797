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
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vitalsync/vitalsync/internal/utils"
	"github.com/vitalsync/vitalsync/internal/version"
)

var (
	home, _            = os.UserHomeDir()
	defaultAppDir      = filepath.Join(home, ".vitalsync")
	defaultDestination = filepath.Join(home, "VitalSync")
	configFileName     = "config"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "vitalsync",
	Short:   "VitalSync health data sync and export",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", filepath.Join(defaultAppDir, "config.json"), "VitalSync config file")
	rootCmd.PersistentFlags().StringP("name", "n", "", "Device name shown to peers (defaults to hostname)")
	rootCmd.PersistentFlags().String("app-dir", defaultAppDir, "Directory for the cache, schedule and logs")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("encoding", "msgpack", "Wire encoding preference (msgpack or json)")
}

func main() {
	logFile := filepath.Join(defaultAppDir, "logs", "vitalsync.log")
	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewFanoutLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Lookup("config") != nil && cmd.Flags().Changed("config") {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(defaultAppDir)
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("device_name", cmd.Flags().Lookup("name"))
	viper.BindPFlag("app_dir", cmd.Flags().Lookup("app-dir"))
	viper.BindPFlag("encoding", cmd.Flags().Lookup("encoding"))
	viper.SetDefault("destination", defaultDestination)
	viper.SetDefault("format", "markdown")
	viper.SetDefault("port", 53490)
	viper.SetDefault("encoding", "msgpack")

	viper.SetEnvPrefix("VITALSYNC")
	viper.AutomaticEnv()

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logLevel.Set(slog.LevelDebug)
	}

	return nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Println(version.AppName + " " + version.Short())
}
