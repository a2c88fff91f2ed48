package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/charliek/snag/sink"
)

// Sink flags
var (
	sinkHost     string
	sinkPort     int
	sinkCapacity int
)

// sinkShutdownTimeout bounds the graceful shutdown
const sinkShutdownTimeout = 10 * time.Second

// sinkCmd runs the local development ingestion endpoint
var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run a local report sink",
	Long: `Sink runs a local development ingestion endpoint that accepts
submitted reports, keeps a bounded in-memory history, and streams
accepted reports over SSE. Point the SDK at it:

  endpoint: http://127.0.0.1:8940/api/v1/reports`,
	RunE: runSink,
}

func init() {
	sinkCmd.Flags().StringVar(&sinkHost, "host", "127.0.0.1", "Listen host")
	sinkCmd.Flags().IntVarP(&sinkPort, "port", "p", 8940, "Listen port")
	sinkCmd.Flags().IntVar(&sinkCapacity, "capacity", sink.DefaultCapacity, "Stored report ceiling")
}

func runSink(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)

	srv := sink.NewServer(sink.Config{
		Host:     sinkHost,
		Port:     sinkPort,
		Capacity: sinkCapacity,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("Sink listening on http://%s\n", srv.Addr())
	fmt.Printf("POST reports to http://%s/api/v1/reports\n", srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sinkShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
