package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vaultcron/vaultcron/config"
	"github.com/vaultcron/vaultcron/notify"
	"github.com/vaultcron/vaultcron/pipeline"
	"github.com/vaultcron/vaultcron/retention"
	"github.com/vaultcron/vaultcron/scheduler"
)

var (
	configPath string
	logLevel   string

	tag    = "git"
	commit = "unknown"

	rootCmd = &cobra.Command{
		Use:   "vaultcron",
		Short: "Scheduled backup daemon: snapshot, archive, compress, encrypt, prune",
		RunE:  runServe,
	}
	cmdVersion = &cobra.Command{
		Use: "version",
		Run: func(cmd *cobra.Command, args []string) {
			logrus.Infof("vaultcron %s (%s)", tag, commit)
		},
	}
	cmdCheck = &cobra.Command{
		Use:   "check",
		Short: "load and validate the config file, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(configPath)
			return err
		},
	}
)

func init() {
	cobra.OnInitialize(func() {
		if logLevel == "" {
			return
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Warnf("cannot set log level %q: %v", logLevel, err)
			return
		}
		logrus.SetLevel(level)
	})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/vaultcron/config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", os.Getenv("LOG_LEVEL"), "log level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(cmdVersion, cmdCheck)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sched, err := scheduler.ParseCron(cfg.Cron)
	if err != nil {
		return err
	}

	if err := pipeline.ReapPartials(cfg.OutDir, cfg.ArchiveBaseName); err != nil {
		logrus.WithError(err).Warn("failed to reap leftover partial files")
	}

	notifier := buildNotifier(cfg)

	policy, err := retention.FromConfig(cfg.Retention)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runFn := func(ctx context.Context) {
		report, err := pipeline.Run(cfg, pipeline.SystemClock{})
		if err != nil {
			logrus.WithError(err).Error("backup run failed")
		}
		if nerr := notifier.Notify(report); nerr != nil {
			logrus.WithError(nerr).Warn("notification delivery failed")
		}
	}

	sweepFn := func(ctx context.Context) {
		_, deleted, errs := retention.Sweep(cfg.OutDir, cfg.ArchiveBaseName, policy, pipeline.SystemClock{}.Now())
		for _, err := range errs {
			logrus.WithError(err).Warn("retention sweep error")
		}
		if len(deleted) > 0 {
			logrus.WithField("count", len(deleted)).Info("retention sweep removed old archives")
		}
	}

	scheduler.Serve(ctx, sched, runFn, sweepFn)
	return nil
}

func buildNotifier(cfg config.Config) notify.Notifier {
	sinks := []notify.Notifier{notify.Logger{}}
	for _, n := range cfg.Notifications {
		if n.Type == "smtp" {
			sinks = append(sinks, notify.NewSMTP(n))
		}
	}
	return notify.Multi{Notifiers: sinks}
}
