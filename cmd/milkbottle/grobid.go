// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/milkbottle/internal/container"
	"github.com/pdiddy/milkbottle/internal/grobid"
)

const (
	grobidContainer    = "milkbottle-grobid"
	grobidPort         = "8070"
	grobidPollInterval = 2 * time.Second
	grobidProbeTimeout = 5 * time.Second
)

var grobidCmd = &cobra.Command{
	Use:   "grobid",
	Short: "Check, start, or stop the local Grobid service",
	Long: `Grobid manages the Grobid container used by the grobid backend. The
container runs detached under docker or podman and is removed when stopped.`,
}

var grobidStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether Grobid answers and its container is running",
	Args:  cobra.NoArgs,
	RunE:  runGrobidStatus,
}

var grobidStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a Grobid container and wait until it answers",
	Args:  cobra.NoArgs,
	RunE:  runGrobidStart,
}

var grobidStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Grobid container",
	Args:  cobra.NoArgs,
	RunE:  runGrobidStop,
}

func init() {
	grobidStartCmd.Flags().Duration("wait", 90*time.Second, "how long to wait for the service to answer (0 to skip)")

	grobidCmd.AddCommand(grobidStatusCmd)
	grobidCmd.AddCommand(grobidStartCmd)
	grobidCmd.AddCommand(grobidStopCmd)
	pdfmilkerCmd.AddCommand(grobidCmd)
}

func runGrobidStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	client := grobid.NewFromConfig(cfg.Grobid, grobid.WithLogger(logger))

	if rt, err := container.DetectRuntime(); err == nil {
		running, err := rt.Running(grobidContainer)
		switch {
		case err != nil:
			logger.Warn("checking container", zap.Error(err))
		case running:
			fmt.Fprintf(out, "container: %s running (%s)\n", grobidContainer, rt.Name())
		default:
			fmt.Fprintf(out, "container: %s not running (%s)\n", grobidContainer, rt.Name())
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), grobidProbeTimeout)
	defer cancel()
	if err := client.IsAlive(ctx); err != nil {
		fmt.Fprintf(out, "grobid: down at %s\n", client.BaseURL())
		return err
	}
	fmt.Fprintf(out, "grobid: up at %s\n", client.BaseURL())
	return nil
}

func runGrobidStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetDuration("wait")
	out := cmd.OutOrStdout()

	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	running, err := rt.Running(grobidContainer)
	if err != nil {
		return err
	}
	if running {
		fmt.Fprintf(out, "%s is already running\n", grobidContainer)
		return nil
	}
	if err := rt.ImageExists(cfg.Grobid.Image); err != nil {
		logger.Info("image not present locally; the runtime will pull it", zap.String("image", cfg.Grobid.Image))
	}

	port := hostPort(cfg.Grobid.URL)
	id, err := rt.Start(cfg.Grobid.Image, grobidContainer, []string{port + ":" + grobidPort})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "started %s (%s) from %s\n", grobidContainer, id, cfg.Grobid.Image)

	if wait <= 0 {
		return nil
	}
	client := grobid.NewFromConfig(cfg.Grobid, grobid.WithLogger(logger))
	return waitForGrobid(cmd.Context(), client, wait, out)
}

func runGrobidStop(cmd *cobra.Command, args []string) error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	if err := rt.Stop(grobidContainer); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", grobidContainer)
	return nil
}

// waitForGrobid polls IsAlive until the service answers or wait elapses.
func waitForGrobid(ctx context.Context, client *grobid.Client, wait time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(grobidPollInterval)
	defer ticker.Stop()
	for {
		probe, done := context.WithTimeout(ctx, grobidProbeTimeout)
		err := client.IsAlive(probe)
		done()
		if err == nil {
			fmt.Fprintf(out, "grobid: up at %s\n", client.BaseURL())
			return nil
		}
		logger.Debug("waiting for grobid", zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("grobid did not answer within %s: %w", wait, err)
		case <-ticker.C:
		}
	}
}

// hostPort returns the port of the configured Grobid URL, or the service's
// own port when the URL names none.
func hostPort(raw string) string {
	if raw == "" {
		raw = grobid.DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Port() == "" {
		return grobidPort
	}
	return u.Port()
}
