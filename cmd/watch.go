package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/boundprove/formatter"
	"github.com/gnolang/boundprove/internal"
	"github.com/gnolang/boundprove/internal/metrics"
	tt "github.com/gnolang/boundprove/internal/types"
)

var (
	metricsAddr string
	debounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-lint Go files as they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		rec := metrics.NewRecorder(reg)

		engine, err := newEngine(".", internal.WithRecorder(rec))
		if err != nil {
			return err
		}
		applyIgnores(engine, ignoreRules, ignorePaths)

		if metricsAddr != "" {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           metricsHandler(reg),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("serving metrics", zap.String("addr", metricsAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		fmt.Fprintf(os.Stderr, "watching %v, press Ctrl+C to stop\n", args)
		return engine.Watch(ctx, args, debounce, newWatchReporter(os.Stdout))
	},
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	watchCmd.Flags().DurationVar(&debounce, "debounce", internal.DefaultDebounce, "Wait this long after the last change before linting")
	watchCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of lint rules to ignore")
	watchCmd.Flags().StringVar(&ignorePaths, "ignore-paths", "", "Comma-separated list of paths to ignore")
	watchCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Reuse results of unchanged files stored in this directory")
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// newWatchReporter prints the issues of every re-linted file to w.
func newWatchReporter(w io.Writer) internal.ReportFunc {
	var mu sync.Mutex
	return func(filename string, issues []tt.Issue) {
		mu.Lock()
		defer mu.Unlock()

		if len(issues) == 0 {
			fmt.Fprintf(w, "%s: no issues\n", filename)
			return
		}
		fmt.Fprintf(w, "%s: %d issue(s)\n", filename, len(issues))
		sourceCode, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Warn("Error reading source file", zap.String("file", filename), zap.Error(err))
			return
		}
		fmt.Fprint(w, formatter.GenerateFormattedIssue(issues, sourceCode))
	}
}
