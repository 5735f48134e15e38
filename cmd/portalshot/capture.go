package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nao1215/portalshot/internal/capture"
	"github.com/nao1215/portalshot/internal/config"
	"github.com/nao1215/portalshot/internal/database"
	"github.com/nao1215/portalshot/internal/pipeline"
	"github.com/nao1215/portalshot/internal/preflight"
	"github.com/nao1215/portalshot/internal/report"
	"github.com/nao1215/portalshot/internal/targets"
	"github.com/nao1215/portalshot/internal/tor"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCaptureCmd creates the capture command.
func NewCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture <input>",
		Short: "Screenshot every URL of a target list and build a report",
		Long: `Capture reads URLs from a CSV or XLSX file, screenshots each unique URL
with a headless Chrome, groups identical pages and writes a report.

By default the URL is read from the fourth column (index 3) of the sheet.
The report format follows the output extension (.pdf or .md) unless
--format is given. A change log of page fingerprints is always written.

Examples:
  # PDF report of every portal in the list
  portalshot capture portals.csv -o report.pdf

  # Only capture pages showing a login form
  portalshot capture portals.xlsx -o logins.md --login-only

  # URL column chosen by header name, change log as XLSX
  portalshot capture assets.csv --column-name Endpoint -o report.pdf --changelog changes.xlsx

  # Reach .onion portals through an embedded Tor daemon
  portalshot capture hidden.csv -o hidden.pdf --tor

  # Skip hosts that do not resolve or accept connections
  portalshot capture portals.csv -o report.pdf --preflight --resolver 9.9.9.9:53`,
		Args: cobra.ExactArgs(1),
		RunE: runCaptureCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Report file path (.pdf or .md)")
	cmd.Flags().StringP("format", "f", "",
		"Report format: pdf or markdown (default: from the output extension)")
	cmd.Flags().String("changelog", config.DefaultChangeLogPath,
		"Change log path (.csv, or .xlsx for a workbook)")
	cmd.Flags().String("keep-screenshots", "",
		"Keep screenshots in this directory instead of deleting them")

	// Input flags
	cmd.Flags().Int("column", config.DefaultURLColumn,
		"Zero-based index of the URL column")
	cmd.Flags().String("column-name", "",
		"Header name of the URL column (overrides --column)")
	cmd.Flags().String("sheet", "",
		"XLSX worksheet to read (default: first sheet)")

	// Capture flags
	cmd.Flags().BoolP("login-only", "l", false,
		"Only capture pages that show a password field")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay,
		"Time a page may keep rendering before the screenshot")
	cmd.Flags().DurationP("timeout", "t", config.DefaultNavigationTimeout,
		"Navigation timeout per URL")
	cmd.Flags().Duration("login-timeout", config.DefaultLoginTimeout,
		"How long to wait for a password field in --login-only mode")
	cmd.Flags().Int("width", config.DefaultViewportWidth, "Browser viewport width")
	cmd.Flags().Int("height", config.DefaultViewportHeight, "Browser viewport height")
	cmd.Flags().String("chrome", "", "Chrome executable path (default: search PATH)")

	// Tor and proxy flags
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and capture through it")
	cmd.Flags().StringP("external-tor", "e", "",
		"Capture through an existing SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Pre-flight flags
	cmd.Flags().Bool("preflight", false,
		"Check DNS and TCP reachability before launching the browser")
	cmd.Flags().String("resolver", "",
		"DNS server for --preflight (default: from /etc/resolv.conf)")
	cmd.Flags().Duration("preflight-timeout", config.DefaultPreflightTimeout,
		"Timeout of each pre-flight check")

	// Misc flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .portalshot in current or home directory)")
	cmd.Flags().Bool("no-history", false, "Do not save the run to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	return cmd
}

// runCaptureCmd executes the capture command.
func runCaptureCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCaptureConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted: finishing the current URL, then stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	browser := capture.NewChromeBrowser(
		capture.WithExecPath(cfg.ChromePath),
		capture.WithChromeLogger(logger),
	)
	return runCapture(ctx, cfg, browser, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildCaptureConfig creates a Config from cobra command flags.
func buildCaptureConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if len(args) > 0 {
		cfg.InputPath = args[0]
	}

	if cfg.OutputPath, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ChangeLogPath, err = flags.GetString("changelog"); err != nil {
		return nil, err
	}
	if cfg.KeepScreenshotsDir, err = flags.GetString("keep-screenshots"); err != nil {
		return nil, err
	}
	if cfg.URLColumn, err = flags.GetInt("column"); err != nil {
		return nil, err
	}
	if cfg.URLColumnName, err = flags.GetString("column-name"); err != nil {
		return nil, err
	}
	if cfg.Sheet, err = flags.GetString("sheet"); err != nil {
		return nil, err
	}
	if cfg.LoginOnly, err = flags.GetBool("login-only"); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.NavigationTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.LoginTimeout, err = flags.GetDuration("login-timeout"); err != nil {
		return nil, err
	}
	if cfg.ViewportWidth, err = flags.GetInt("width"); err != nil {
		return nil, err
	}
	if cfg.ViewportHeight, err = flags.GetInt("height"); err != nil {
		return nil, err
	}
	if cfg.ChromePath, err = flags.GetString("chrome"); err != nil {
		return nil, err
	}
	if cfg.UseEmbeddedTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.ExternalProxy, err = flags.GetString("external-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Preflight, err = flags.GetBool("preflight"); err != nil {
		return nil, err
	}
	if cfg.Resolver, err = flags.GetString("resolver"); err != nil {
		return nil, err
	}
	if cfg.PreflightTimeout, err = flags.GetDuration("preflight-timeout"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.NoColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSiteConfigs loads the per-site settings. An explicitly given file
// must exist; otherwise a missing file means no per-site settings.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	sites, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return sites, nil
}

// runCapture executes one capture run with the given browser.
func runCapture(ctx context.Context, cfg *config.Config, browser capture.Browser, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Info("starting capture run",
		"input", cfg.InputPath,
		"output", cfg.OutputPath,
		"format", cfg.ResolvedFormat(),
		"loginOnly", cfg.LoginOnly,
	)

	builder, err := report.NewBuilder(report.Format(cfg.ResolvedFormat()))
	if err != nil {
		return err
	}

	socks, stopTor, err := setupProxy(ctx, cfg, logger, errOut)
	if err != nil {
		return err
	}
	defer stopTor()

	unitOpts := []capture.Option{
		capture.WithViewport(cfg.ViewportWidth, cfg.ViewportHeight),
		capture.WithSettleDelay(cfg.SettleDelay),
		capture.WithNavigationTimeout(cfg.NavigationTimeout),
		capture.WithLoginTimeout(cfg.LoginTimeout),
		capture.WithLoginGate(cfg.LoginOnly),
		capture.WithSiteConfigs(cfg.SiteConfigs),
		capture.WithLogger(logger),
	}
	if socks != nil {
		unitOpts = append(unitOpts, capture.WithProxy(socks.Address()))
	}
	unit := capture.NewUnit(browser, unitOpts...)

	orchestratorOpts := []pipeline.OrchestratorOption{
		pipeline.WithChangeLogPath(cfg.ChangeLogPath),
		pipeline.WithTargetOptions(targetOptions(cfg)...),
		pipeline.WithOrchestratorLogger(logger),
	}
	if cfg.KeepScreenshotsDir != "" {
		orchestratorOpts = append(orchestratorOpts, pipeline.WithWorkDir(cfg.KeepScreenshotsDir))
	}
	if cfg.Preflight {
		checkerOpts := []preflight.Option{
			preflight.WithResolver(cfg.Resolver),
			preflight.WithTimeout(cfg.PreflightTimeout),
		}
		if socks != nil {
			checkerOpts = append(checkerOpts, preflight.WithProxyDialer(socks.Dialer()))
		}
		orchestratorOpts = append(orchestratorOpts, pipeline.WithPreflight(preflight.NewChecker(checkerOpts...)))
	}

	var history *database.HistoryDB
	if cfg.SaveHistory {
		history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer history.Close()
		orchestratorOpts = append(orchestratorOpts, pipeline.WithHistory(history))
	}

	run := pipeline.NewOrchestrator(unit, builder, orchestratorOpts...).
		Start(ctx, cfg.InputPath, cfg.OutputPath)

	completion := followRun(run, errOut)

	if completion.ChangeLogPath != "" {
		fmt.Fprintf(errOut, "Change log: %s\n", completion.ChangeLogPath)
	}
	if !completion.Succeeded() {
		if errors.Is(completion.Err, pipeline.ErrCancelled) {
			return errors.New("capture cancelled: no report written")
		}
		return completion.Err
	}

	result := completion.Result
	report.WriteIndex(out, result.Captured, result.Groups, cfg.NoColor)
	fmt.Fprintf(out, "\nReport: %s\n", completion.OutputPath)
	if failed := result.FailedCount(); failed > 0 {
		fmt.Fprintf(out, "%d of %d URLs could not be captured; see the change log.\n", failed, len(result.Targets))
	}

	if history != nil && completion.RunID != 0 {
		printPreviousRunDiff(ctx, history, completion.RunID, out, logger)
	}
	return nil
}

// targetOptions maps the input flags to target-list options.
func targetOptions(cfg *config.Config) []targets.Option {
	opts := []targets.Option{targets.WithColumn(cfg.URLColumn)}
	if cfg.URLColumnName != "" {
		opts = append(opts, targets.WithColumnName(cfg.URLColumnName))
	}
	if cfg.Sheet != "" {
		opts = append(opts, targets.WithSheet(cfg.Sheet))
	}
	return opts
}

// followRun renders progress and log events until the run completes.
func followRun(run *pipeline.Run, errOut io.Writer) pipeline.Completion {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionClearOnFinish(),
	)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.Go(func() error {
		for p := range run.Progress() {
			mu.Lock()
			_ = bar.Set(p)
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		for line := range run.Log() {
			mu.Lock()
			_ = bar.Clear()
			fmt.Fprintln(errOut, line)
			_ = bar.RenderBlank()
			mu.Unlock()
		}
		return nil
	})

	completion := <-run.Done()
	_ = g.Wait()
	_ = bar.Finish()
	return completion
}

// setupProxy starts the embedded Tor daemon or verifies the external proxy.
// It returns nil when no proxy is configured. The returned stop function is
// always safe to call.
func setupProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (*tor.Proxy, func(), error) {
	noop := func() {}

	switch {
	case cfg.ExternalProxy != "":
		p, err := tor.NewProxy(cfg.ExternalProxy)
		if err != nil {
			return nil, noop, err
		}
		if status := p.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %s (make sure Tor is running at %s): %w",
				status, cfg.ExternalProxy, status.Err())
		}
		logger.Info("SOCKS5 proxy verified", "address", cfg.ExternalProxy)
		return p, noop, nil

	case cfg.UseEmbeddedTor:
		fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
		fmt.Fprintf(errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := daemon.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := daemon.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		p, err := daemon.Proxy()
		if err != nil {
			stop()
			return nil, noop, err
		}
		if status := p.CheckConnection(ctx); status != tor.ProxyStatusOK {
			stop()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %s: %w", status, status.Err())
		}
		fmt.Fprintf(errOut, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", daemon.SocksAddr())
		return p, stop, nil

	default:
		return nil, noop, nil
	}
}

// printPreviousRunDiff prints how the fingerprints changed since the
// previous saved run. Nothing is printed for the first run.
func printPreviousRunDiff(ctx context.Context, history *database.HistoryDB, runID int64, out io.Writer, logger *slog.Logger) {
	diff, err := history.CompareWithPrevious(ctx, runID)
	if err != nil {
		if !errors.Is(err, database.ErrRunNotFound) {
			logger.Warn("failed to compare with previous run", "error", err)
		}
		return
	}

	if !diff.HasChanges() {
		fmt.Fprintf(out, "No change since run #%d.\n", diff.OldRunID)
		return
	}
	fmt.Fprintf(out, "Since run #%d: %d changed, %d new, %d gone (portalshot history --run %d)\n",
		diff.OldRunID, len(diff.Changed), len(diff.Appeared), len(diff.Disappeared), runID)
}
