// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/browser/driver/cdp"
	"github.com/xkilldash9x/webready/internal/browser/driver/webdriver"
	"github.com/xkilldash9x/webready/internal/browser/session"
	"github.com/xkilldash9x/webready/internal/config"
	"github.com/xkilldash9x/webready/internal/observability"
	"github.com/xkilldash9x/webready/internal/scenario"
)

// openDriver starts the browser driver a scenario file runs against.
// Tests replace it with an in-memory fake.
var openDriver = func(ctx context.Context, cfg config.DriverConfig, logger *zap.Logger) (driver.Driver, error) {
	switch cfg.Kind {
	case "webdriver":
		return webdriver.Open(ctx, webdriver.Options{
			URL:      cfg.WebDriverURL,
			Browser:  cfg.BrowserName,
			Headless: cfg.Headless,
			Args:     cfg.Args,
		}, logger)
	default:
		if cfg.RemoteDebuggingURL != "" {
			return cdp.Attach(ctx, cfg.RemoteDebuggingURL, logger)
		}
		return cdp.Launch(ctx, cdp.Options{
			ExecPath: cfg.ExecPath,
			Headless: cfg.Headless,
			Args:     cfg.Args,
		}, logger)
	}
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var concurrency int

	runCmd := &cobra.Command{
		Use:   "run [scenario files...]",
		Short: "Runs YAML scenarios, each file in its own browser session",
		Long: `Runs the scenarios in the given YAML files. Files run concurrently, each
with its own driver and session; the scenarios inside one file run in order
and share that session. A failing step stops its scenario.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			return runFiles(cmd.Context(), cfg, args, concurrency, cmd.OutOrStdout())
		},
	}

	runCmd.Flags().String("driver", "", "browser driver: cdp or webdriver (overrides config)")
	runCmd.Flags().Bool("headless", true, "run the browser without a window")
	runCmd.Flags().String("webdriver-url", "", "WebDriver remote end URL")
	runCmd.Flags().Duration("timeout", 0, "default wait timeout per step")
	runCmd.Flags().Duration("interval", 0, "poll interval")
	runCmd.Flags().String("clear-policy", "", "clear policy for set: never, always or once")
	runCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file when done")
	runCmd.Flags().IntVarP(&concurrency, "concurrency", "j", runtime.NumCPU(), "scenario files run in parallel")
	return runCmd
}

// fileReport is the outcome of one scenario file.
type fileReport struct {
	path    string
	results []*scenario.Result
	err     error
}

// runFiles parses every file up front, then runs them with at most limit
// in flight. One file failing does not stop the others.
func runFiles(ctx context.Context, cfg *config.Config, paths []string, limit int, out io.Writer) error {
	logger := observability.GetLogger()

	parsed := make([][]*scenario.Scenario, len(paths))
	for i, p := range paths {
		scs, err := scenario.ParseFile(p)
		if err != nil {
			return err
		}
		parsed[i] = scs
	}

	reports := make([]fileReport, len(paths))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			results, err := runFile(ctx, cfg, parsed[i], logger.With(zap.String("file", p)))
			reports[i] = fileReport{path: p, results: results, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if path := cfg.Metrics().Textfile; path != "" {
		if err := observability.WriteTextfile(path); err != nil {
			logger.Warn("Failed to write metrics textfile.", zap.String("path", path), zap.Error(err))
		}
	}

	var (
		failed []error
		total  int
	)
	for _, r := range reports {
		for _, res := range r.results {
			total++
			fmt.Fprintf(out, "PASS  %-40s %3d steps  %v\n", res.Name, res.Steps, res.Elapsed.Round(time.Millisecond))
		}
		if r.err != nil {
			total++
			fmt.Fprintf(out, "FAIL  %s: %v\n", r.path, r.err)
			failed = append(failed, fmt.Errorf("%s: %w", r.path, r.err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed: %w", len(failed), total, errors.Join(failed...))
	}
	return nil
}

// runFile opens a driver and session for one file and runs its scenarios
// in order, stopping at the first failure.
func runFile(ctx context.Context, cfg *config.Config, scs []*scenario.Scenario, logger *zap.Logger) ([]*scenario.Result, error) {
	drv, err := openDriver(ctx, cfg.Driver(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s driver: %w", cfg.Driver().Kind, err)
	}
	defer func() {
		timeout := cfg.Driver().CommandTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if qerr := drv.Quit(qctx); qerr != nil {
			logger.Warn("Failed to quit driver.", zap.Error(qerr))
		}
	}()

	s, err := session.NewSession(drv, cfg, logger)
	if err != nil {
		return nil, err
	}
	runner := scenario.NewRunner(s, logger)
	var results []*scenario.Result
	for _, sc := range scs {
		res, err := runner.Run(ctx, sc)
		if err != nil {
			return results, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}
