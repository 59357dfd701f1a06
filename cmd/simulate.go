package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solarcharger/config"
	"github.com/kilianp07/solarcharger/core/telemetry"
	"github.com/kilianp07/solarcharger/infra/mqtt"
)

var (
	simShape    string
	simPower    float64
	simCount    int
	simInterval time.Duration
	simRetained bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish sample telemetry to the configured topic",
	RunE:  simulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simShape, "shape", telemetry.SampleAggregate, "payload shape: aggregate or trackers")
	simulateCmd.Flags().Float64Var(&simPower, "power", 250, "PV power in watts")
	simulateCmd.Flags().IntVar(&simCount, "count", 1, "number of messages")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "delay between messages")
	simulateCmd.Flags().BoolVar(&simRetained, "retained", false, "publish retained")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	payload, err := telemetry.SamplePayload(simShape, simPower)
	if err != nil {
		return err
	}
	for i := 0; i < simCount; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(simInterval):
			}
		}
		pubCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := mqtt.PublishOnce(pubCtx, cfg.MQTT, payload, simRetained)
		cancel()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", payload)
	}
	return nil
}
