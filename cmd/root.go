package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solarcharger/app"
	"github.com/kilianp07/solarcharger/config"
	"github.com/kilianp07/solarcharger/infra/logger"
)

var (
	cfgPath string
	grace   time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "solarcharger",
	Short:        "Bridge MQTT solar charger telemetry to a Victron D-Bus service",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().DurationVar(&grace, "grace", 60*time.Second, "wait before exiting on a configuration error")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return delayExit(ctx, err)
	}
	logger.Configure(cfg.Logging.Level)
	log := logger.New("main")
	log.Infof("Starting %s", cfg.Device.Name)

	svc, err := app.New(cfg)
	if err != nil {
		return delayExit(ctx, err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// delayExit reports err and returns it once the grace period elapsed.
func delayExit(ctx context.Context, err error) error {
	fmt.Fprintf(os.Stderr, "ERROR: %v. The driver restarts in %s.\n", err, grace)
	select {
	case <-ctx.Done():
	case <-time.After(grace):
	}
	return err
}
