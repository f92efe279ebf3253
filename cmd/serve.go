package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/geoslice/internal/logging"
	"github.com/kiesman99/geoslice/internal/metrics"
	"github.com/kiesman99/geoslice/internal/server"
	"github.com/kiesman99/geoslice/internal/tracing"
	"github.com/kiesman99/geoslice/pkg/raster"
)

var serveCmd = &cobra.Command{
	Use:   "serve <base>",
	Short: "Start HTTP server for window extraction and flight simulation",
	Long: `Start an HTTP server that provides a REST API over one dataset.

The server provides endpoints for window extraction, coordinate conversion,
footprint sizing and flight simulation. Prometheus metrics are exposed at
/metrics.

Examples:
  # Start server on default port 8080
  geoslice serve data/test_map

  # Start server on custom port with a memory-mapped payload
  geoslice serve data/test_map --port 3000 --backend mmap

  # Start server with custom bind address
  geoslice serve data/test_map --bind 0.0.0.0 --port 8080`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().Int64("cache-bytes", raster.DefaultCacheBytes, "window cache capacity in bytes (0 disables)")
	serveCmd.Flags().Bool("access-log", true, "log every request")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.access-log", serveCmd.Flags().Lookup("access-log"))
	viper.BindPFlag("cache.bytes", serveCmd.Flags().Lookup("cache-bytes"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")
	cacheBytes := viper.GetInt64("cache.bytes")

	addr := fmt.Sprintf("%s:%d", bind, port)

	log := newLogger()
	ctx := context.Background()

	shutdownTracing, err := startTracing(ctx, log)
	if err != nil {
		return err
	}
	defer tracing.Shutdown(ctx, shutdownTracing, log)

	ds, err := openDataset(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	tr, err := transformFor(ds.Metadata())
	if err != nil {
		return err
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var cache *raster.WindowCache
	if cacheBytes > 0 {
		cache = raster.NewWindowCache(cacheBytes)
		if err := metrics.RegisterCache(prometheus.DefaultRegisterer, cache); err != nil {
			return fmt.Errorf("register cache metrics: %w", err)
		}
	}

	// Create server implementation
	apiServer := server.NewServer(server.Config{
		Version:   version,
		Store:     ds,
		Transform: tr,
		Backend:   ds.Backend.String(),
		Cache:     cache,
		Logger:    log,
		Metrics:   m,
	})

	httpServer := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(apiServer, server.RouterOptions{
			Timeout:        timeout,
			Metrics:        m,
			RequestLogging: viper.GetBool("server.access-log"),
		}),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	meta := ds.Metadata()
	log.Info(ctx, "starting geoslice server",
		logging.String("addr", addr),
		logging.String("dataset", ds.Base),
		logging.String("backend", ds.Backend.String()),
		logging.String("dtype", string(meta.DType)),
		logging.Int("bands", meta.Count),
		logging.Int("height", meta.Height),
		logging.Int("width", meta.Width),
		logging.Int("zone", tr.Zone),
		logging.Any("cache_bytes", cacheBytes),
	)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/api/v1/health\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Window endpoint: http://%s/api/v1/window\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Metrics: http://%s/metrics\n", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveUntil(ctx, httpServer, ln, sigCtx.Done(), log)
}

// serveUntil serves on ln until stop fires, then shuts srv down. It returns
// only once in-flight requests have drained, so deferred cleanup such as
// unmapping the dataset runs after the last handler is done.
func serveUntil(ctx context.Context, srv *http.Server, ln net.Listener, stop <-chan struct{}, log logging.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stop

		log.Info(ctx, "shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error(ctx, "server shutdown error", logging.Err(err))
		}
	}()

	if err := srv.Serve(ln); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	<-done
	return nil
}
