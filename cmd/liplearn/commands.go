package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/projectlif/liplearn/internal/api"
	"github.com/projectlif/liplearn/internal/catalog"
	"github.com/projectlif/liplearn/internal/config"
	"github.com/projectlif/liplearn/internal/logging"
	"github.com/projectlif/liplearn/internal/mockserver"
	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/progress"
	"github.com/projectlif/liplearn/internal/stats"
	"github.com/projectlif/liplearn/internal/statsui"
	"github.com/projectlif/liplearn/internal/store"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show practice stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter (syllable or word)")
	cmd.Flags().StringVar(&statsCategory, "category", "", "category filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N attempts")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain-text report instead of the interactive view")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildStatsConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain {
		report, err := stats.BuildReport(cmd.Context(), st, cfg)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		out := cmd.OutOrStdout()
		return report.Render(out, cfg.CurveWindow, 0, stats.ShouldUseColor(out))
	}

	ui := statsui.NewModel(statsui.StoreLoader(st), cfg)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func buildStatsConfig() (model.StatsConfig, error) {
	cfg := model.StatsConfig{
		Category:    strings.ToLower(strings.TrimSpace(statsCategory)),
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}
	if statsMode != "" {
		mode, err := model.ParseMode(statsMode)
		if err != nil {
			return model.StatsConfig{}, err
		}
		cfg.Mode = mode
	}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return model.StatsConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	if cfg.Last < 0 {
		return model.StatsConfig{}, fmt.Errorf("--last must be >= 0")
	}
	if cfg.CurveWindow < 1 {
		return model.StatsConfig{}, fmt.Errorf("--curve-window must be >= 1")
	}
	return cfg, nil
}

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show mastered syllables and points",
		Args:  cobra.NoArgs,
		RunE:  runProgressCmd,
	}
	cmd.Flags().BoolVar(&progressSync, "sync", false, "merge with the server record and push the result")
	cmd.Flags().StringVar(&practiceServer, "server", defaultServerURL, "prediction server base URL")
	return cmd
}

func runProgressCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "server", &practiceServer, fileCfg.Server.URL)
	log := logging.New(os.Stderr, levelOr(fileCfg.Log.Level, "warn"), true)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	opts := progress.Options{Store: st, Logger: log}
	if progressSync {
		opts.Remote = api.NewClient(practiceServer, &http.Client{Timeout: requestTimeout}, log)
	}
	mgr := progress.New(opts)
	ctx := cmd.Context()
	if _, err := mgr.Load(ctx); err != nil {
		return err
	}
	if progressSync {
		if err := mgr.SyncFromServer(ctx); err != nil {
			return fmt.Errorf("failed to pull progress: %w", err)
		}
		if err := mgr.SyncToServer(ctx); err != nil {
			return fmt.Errorf("failed to push progress: %w", err)
		}
	}
	return renderProgress(cmd.OutOrStdout(), mgr.Current())
}

func renderProgress(w io.Writer, p model.Progress) error {
	completed := "none"
	if len(p.Completed) > 0 {
		upper := make([]string, len(p.Completed))
		for i, id := range p.Completed {
			upper[i] = strings.ToUpper(id)
		}
		completed = strings.Join(upper, ", ")
	}
	updated := p.LastUpdated
	if updated == "" {
		updated = "never"
	}
	lines := []string{
		fmt.Sprintf("Points: %d", p.Points),
		fmt.Sprintf("Mastered (%d): %s", len(p.Completed), completed),
		fmt.Sprintf("Practice time: %s", (time.Duration(p.TotalTime) * time.Second).String()),
		fmt.Sprintf("Last updated: %s", updated),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List practice categories and entries",
		Args:  cobra.NoArgs,
		RunE:  runCatalogCmd,
	}
	cmd.Flags().StringVar(&catalogMode, "mode", "", "mode filter (syllable or word)")
	return cmd
}

func runCatalogCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	custom, err := catalog.LoadCustom(fileCfg.Practice.WordLists, config.DefaultWordListDir())
	if err != nil {
		return err
	}
	cat := catalog.New(custom...)

	modes := []model.Mode{model.ModeSyllable, model.ModeWord}
	if catalogMode != "" {
		mode, err := model.ParseMode(catalogMode)
		if err != nil {
			return err
		}
		modes = []model.Mode{mode}
	}
	return renderCatalog(cmd.OutOrStdout(), cat, modes)
}

func renderCatalog(w io.Writer, cat *catalog.Catalog, modes []model.Mode) error {
	for _, mode := range modes {
		if _, err := fmt.Fprintln(w, mode.Label()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		for _, c := range cat.Categories(mode) {
			labels := c.Labels()
			for i := range labels {
				labels[i] = strings.ToUpper(labels[i])
			}
			if _, err := fmt.Fprintf(w, "  %-10s %s\n", c.Name, strings.Join(labels, " ")); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# liplearn configuration
# Uncomment a value to enable it. LIPLEARN_* environment variables override
# this file and CLI flags override both.

[server]
# url = %q

[practice]
# mode = "syllable"         # syllable or word
# category = "vowels"       # category name, see: liplearn catalog
# focus-weak = false        # Bias targets toward weak labels
# weak-top = %d             # Number of weak labels to focus on
# weak-factor = %.1f        # Weight factor for weak labels
# weak-window = %d          # Recent attempts used to find weak labels
# mastery-threshold = %.2f  # Accuracy needed to master a syllable

# [practice.word-lists]
# animals = "animals.txt"   # Relative to %s

[camera]
# source = %q           # ffmpeg or dir
# device = %q
# frames-dir = ""
# width = 640
# height = 480

[log]
# level = %q
# file = ""

[metrics]
# addr = "127.0.0.1:9464"
`,
		defaultServerURL,
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		progress.DefaultThreshold,
		config.DefaultWordListDir(),
		defaultCamera,
		defaultDevice,
		defaultLogLevel,
	)
}

func newMockServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory prediction and progress server",
		Args:  cobra.NoArgs,
		RunE:  runMockServerCmd,
	}
	cmd.Flags().StringVar(&mockAddr, "addr", defaultMockAddr, "listen address")
	cmd.Flags().Int64Var(&mockSeed, "seed", 0, "random seed (0 uses the clock)")
	return cmd
}

func runMockServerCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	custom, err := catalog.LoadCustom(fileCfg.Practice.WordLists, config.DefaultWordListDir())
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, levelOr(fileCfg.Log.Level, defaultLogLevel), true)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mockserver.New(mockserver.Options{
		Catalog: catalog.New(custom...),
		Seed:    mockSeed,
		Logger:  log,
	})
	if err := srv.ListenAndServe(ctx, mockAddr); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func levelOr(level *string, fallback string) string {
	if level == nil || *level == "" {
		return fallback
	}
	return *level
}
