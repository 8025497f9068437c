// Package diagnostics implements "rtx diagnostics": print the fully
// resolved configuration, and optionally serve rtx's own Prometheus
// metrics for a long-running scan-on-a-schedule deployment to scrape.
package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/afadesigns/rtx/internal/config"
	"github.com/afadesigns/rtx/internal/metrics"
)

func NewCmd() *cobra.Command {
	options := struct {
		configPath string
		listen     string
	}{}

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print resolved configuration and optionally serve /metrics",
		Example: heredoc.Doc(`
			$ rtx diagnostics
			$ rtx diagnostics --listen :9090
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiagnostics(cmd, options.configPath, options.listen)
		},
	}

	cmd.Flags().StringVarP(&options.configPath, "config", "c", "", "rtx config file path")
	cmd.Flags().StringVar(&options.listen, "listen", "", "serve /metrics on this address until interrupted (empty prints config and exits)")

	return cmd
}

func runDiagnostics(cmd *cobra.Command, configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "diagnostics: load config")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "diagnostics: encode config")
	}

	if listen == "" {
		return nil
	}
	return serveMetrics(listen)
}

func serveMetrics(listen string) error {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: listen, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "diagnostics: serve metrics")
	}
}
