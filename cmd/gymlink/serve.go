// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gymlink/gymlink"
	"github.com/gymlink/gymlink/connector"
	"github.com/gymlink/gymlink/internal/config"
	"github.com/gymlink/gymlink/internal/script"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built-in walker environment to a trainer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 50051, "port to listen on")
	serveCmd.Flags().String("address", "0.0.0.0", "address to bind")
	serveCmd.Flags().String("transport", gymlink.DefaultTransport, "transport to serve over")
	serveCmd.Flags().String("monitor-addr", "", "address for the JSON-RPC status endpoint (disabled when empty)")
	serveCmd.Flags().String("script", "", "trainer script to launch alongside the server")
	serveCmd.Flags().String("min-trainer-version", "", "reject trainers below this version")
	serveCmd.Flags().String("log-file", "", "rotating log file path")
}

func runServe(cmd *cobra.Command, args []string) error {
	if closer := setupLogging(); closer != nil {
		defer closer.Close()
	}

	opts := []connector.Option{
		connector.WithManagerOptions(gymlink.WithTransport(config.GetString("transport"))),
	}
	if min := config.GetString("min-trainer-version"); min != "" {
		opts = append(opts, connector.WithMinTrainerVersion(min))
	}
	if path := config.GetString("script"); path != "" {
		opts = append(opts, connector.WithScript(script.New(path, config.GetStringSlice("script-args")...)))
	}

	conn, err := connector.Open(config.GetInt("port"), config.GetString("address"), opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	def, env := walkerDefinition()
	if err := conn.Start(def, env); err != nil {
		return err
	}
	fmt.Println(color.GreenString("serving on %s", conn.Manager().Addr()))

	if addr := config.GetString("monitor-addr"); addr != "" {
		mon := gymlink.NewMonitor(conn.Manager())
		if err := mon.Start(addr); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
		fmt.Println(color.GreenString("monitor on %s", mon.Addr()))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mon.Stop(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveLoop(ctx, conn)
}

// serveLoop runs trainer sessions until interrupted. Each session
// waits for a start request, then exchanges decisions for states
// until the trainer closes or errors out.
func serveLoop(ctx context.Context, conn *connector.Connector) error {
	interval := config.GetDuration("start-poll-interval")
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Wait for the trainer to start a session.
		for {
			started, err := conn.CheckForStart()
			if err != nil {
				return err
			}
			if started {
				break
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		log.Printf("[serve] session started, auto-reset %q", conn.AutoReset())
		conn.ResetEnvironments()

		for conn.Status() == connector.StatusRunning {
			fut, err := conn.RequestDecision()
			if err != nil {
				return err
			}
			upd, err := fut.Wait(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				// Aborted exchanges mean the client went away, go
				// back to waiting for the next session.
				log.Printf("[serve] decision aborted: %v", err)
				break
			}
			conn.UpdateStatus(upd)
			if conn.Status() != connector.StatusRunning {
				break
			}
			if err := conn.HandleStep(upd); err != nil {
				return err
			}
		}
		if conn.Status() == connector.StatusError {
			return fmt.Errorf("trainer session failed")
		}
	}
}
