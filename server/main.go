// Command lyra-server runs the LYRA command bridge: it accepts dashboard
// connections over WebSocket, routes text and button commands to the
// simulated peripherals, and pushes status and telemetry back out.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lyralabs/lyra/server/device"
	"github.com/lyralabs/lyra/server/observability"
	"github.com/lyralabs/lyra/server/router"
	"github.com/lyralabs/lyra/server/sampler"
	"github.com/lyralabs/lyra/server/store"
)

var rootCmd = &cobra.Command{
	Use:   "lyra-server",
	Short: "LYRA command bridge backend",
	Long: `lyra-server bridges the LYRA dashboard to the peripheral control
layer over a persistent WebSocket channel. It classifies free-form text
commands, routes them to the TRINETRA ground unit and KRAIT-3 UAV handlers,
and pushes system telemetry to every connected client.

State is process-lifetime only: mode and device status reset to defaults
on restart.`,
	RunE: runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("host", "127.0.0.1", "address to bind")
	flags.Int("port", 5000, "port to bind")
	flags.Bool("debug", false, "enable debug logging")
	flags.Duration("sample-interval", 30*time.Second, "host metrics sampling interval")

	// LYRA_HOST, LYRA_PORT, LYRA_DEBUG, LYRA_SAMPLE_INTERVAL override flags.
	viper.SetEnvPrefix("LYRA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"host", "port", "debug", "sample-interval"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	log, err := newLogger(viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	st := store.New()
	observability.SetMode(string(st.Mode()))

	rt := router.New(st, log,
		device.NewTrinetra(log),
		device.NewKrait3(log),
	)
	hub := NewHub(log)
	api := NewAPI(st, rt, hub, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	samplerCfg := sampler.DefaultConfig()
	samplerCfg.Interval = viper.GetDuration("sample-interval")
	go sampler.New(samplerCfg, st, api, log).Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", api.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := net.JoinHostPort(viper.GetString("host"), fmt.Sprint(viper.GetInt("port")))
	srv := &http.Server{Addr: addr, Handler: mux}

	// Failing to bind is the only fatal condition; everything downstream is
	// handled locally by the component that detects it.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info("lyra-server listening", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	cancel()
	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
