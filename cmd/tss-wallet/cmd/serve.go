package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tsswallet/tss-wallet/engine/wallet/rest"
	"github.com/tsswallet/tss-wallet/module/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wallet over http",
	Long: `Serve the wallet over http. Key generation and signing are available
both as blocking requests and as background jobs polled by id.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := rest.DefaultConfig()
	serveCmd.Flags().String("listen", defaults.ListenAddress, "address of the wallet http server")
	serveCmd.Flags().String("metrics-listen", "", "address of a separate prometheus metrics server, disabled if empty")
	serveCmd.Flags().Bool("profiler", false, "serve pprof endpoints on the metrics server")
	serveCmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "http write timeout, bounds blocking keygen and sign requests")
	serveCmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "http read timeout")
	serveCmd.Flags().Int("signature-cache", defaults.SignatureCacheSize, "number of keys whose last signature is kept for verification")
	_ = viper.BindPFlags(serveCmd.Flags())
}

func serve(cmd *cobra.Command, args []string) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tssMetrics := metrics.NewTSSCollector(registry)
	restMetrics := metrics.NewRestCollector(registry)

	node, err := openWallet(tssMetrics)
	if err != nil {
		return err
	}

	config := rest.DefaultConfig()
	config.ListenAddress = viper.GetString("listen")
	config.WriteTimeout = viper.GetDuration("write-timeout")
	config.ReadTimeout = viper.GetDuration("read-timeout")
	config.SignatureCacheSize = viper.GetInt("signature-cache")

	server, err := rest.NewServer(node.registry, config, log, restMetrics, registry)
	if err != nil {
		return multierror.Append(err, node.Close())
	}

	var metricsServer *metrics.Server
	if address := viper.GetString("metrics-listen"); address != "" {
		metricsServer = metrics.NewServer(log, address, registry, viper.GetBool("profiler"))
		err = metricsServer.Start()
		if err != nil {
			return multierror.Append(err, node.Close())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", config.ListenAddress).Msg("wallet server started")
		serveErr <- server.ListenAndServe()
	}()

	var result *multierror.Error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down wallet server")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, fmt.Errorf("wallet server failed: %w", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("could not shut down wallet server: %w", err))
	}
	if metricsServer != nil {
		<-metricsServer.Done()
	}
	err = node.Close()
	if err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
