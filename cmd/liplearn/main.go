// Package main provides the CLI entrypoint for liplearn.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/projectlif/liplearn/internal/api"
	"github.com/projectlif/liplearn/internal/camera"
	"github.com/projectlif/liplearn/internal/catalog"
	"github.com/projectlif/liplearn/internal/config"
	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/generator"
	"github.com/projectlif/liplearn/internal/landmark"
	"github.com/projectlif/liplearn/internal/logging"
	"github.com/projectlif/liplearn/internal/metrics"
	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/progress"
	"github.com/projectlif/liplearn/internal/session"
	"github.com/projectlif/liplearn/internal/stats"
	"github.com/projectlif/liplearn/internal/store"
	"github.com/projectlif/liplearn/internal/tui"
)

const (
	defaultServerURL   = "http://127.0.0.1:5000"
	defaultCamera      = "ffmpeg"
	defaultDevice      = "/dev/video0"
	defaultLogLevel    = "info"
	defaultWeakTop     = 5
	defaultWeakFactor  = 2.0
	defaultWeakWindow  = 50
	defaultCurveWindow = 10
	defaultMockAddr    = "127.0.0.1:5000"
	requestTimeout     = 30 * time.Second
	eventBuffer        = 64
)

var (
	practiceServer     string
	practiceMode       string
	practiceCategory   string
	practiceTarget     string
	practiceCamera     string
	practiceDevice     string
	practiceFramesDir  string
	practiceWidth      int
	practiceHeight     int
	practiceFocusWeak  bool
	practiceWeakTop    int
	practiceWeakFactor float64
	practiceWeakWindow int
	practiceThreshold  float64
	practiceLogLevel   string
	practiceMetrics    string

	statsMode        string
	statsCategory    string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	progressSync bool

	catalogMode string

	mockAddr string
	mockSeed int64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "liplearn",
		Short:         "Lip-reading practice in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&practiceServer, "server", defaultServerURL, "prediction server base URL")
	flags.StringVar(&practiceMode, "mode", string(model.ModeSyllable), "practice mode (syllable or word)")
	flags.StringVar(&practiceCategory, "category", "", "category to practice (default depends on mode)")
	flags.StringVar(&practiceTarget, "target", "", "initial target label")
	flags.StringVar(&practiceCamera, "camera", defaultCamera, "frame source (ffmpeg or dir)")
	flags.StringVar(&practiceDevice, "device", defaultDevice, "capture device for the ffmpeg source")
	flags.StringVar(&practiceFramesDir, "frames-dir", "", "directory of JPEG frames for the dir source")
	flags.IntVar(&practiceWidth, "width", 640, "capture width")
	flags.IntVar(&practiceHeight, "height", 480, "capture height")
	flags.BoolVar(&practiceFocusWeak, "focus-weak", false, "bias targets toward weak labels")
	flags.IntVar(&practiceWeakTop, "weak-top", defaultWeakTop, "number of weak labels to focus on")
	flags.Float64Var(&practiceWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak labels")
	flags.IntVar(&practiceWeakWindow, "weak-window", defaultWeakWindow, "number of recent attempts to compute weak labels")
	flags.Float64Var(&practiceThreshold, "mastery-threshold", progress.DefaultThreshold, "accuracy needed to master a syllable (0-1]")
	flags.StringVar(&practiceLogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&practiceMetrics, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newProgressCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMockServerCmd())

	return rootCmd
}

// loadFileConfig reads the TOML file and overlays LIPLEARN_* environment values.
func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.LoadEnv()
	if err != nil {
		return config.FileConfig{}, err
	}
	return env.Overlay(fileCfg), nil
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "server", &practiceServer, fileCfg.Server.URL)
	applyStringConfig(cmd, "mode", &practiceMode, fileCfg.Practice.Mode)
	applyStringConfig(cmd, "category", &practiceCategory, fileCfg.Practice.Category)
	applyStringConfig(cmd, "camera", &practiceCamera, fileCfg.Camera.Source)
	applyStringConfig(cmd, "device", &practiceDevice, fileCfg.Camera.Device)
	applyStringConfig(cmd, "frames-dir", &practiceFramesDir, fileCfg.Camera.FramesDir)
	applyIntConfig(cmd, "width", &practiceWidth, fileCfg.Camera.Width)
	applyIntConfig(cmd, "height", &practiceHeight, fileCfg.Camera.Height)
	applyBoolConfig(cmd, "focus-weak", &practiceFocusWeak, fileCfg.Practice.FocusWeak)
	applyIntConfig(cmd, "weak-top", &practiceWeakTop, fileCfg.Practice.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &practiceWeakFactor, fileCfg.Practice.WeakFactor)
	applyIntConfig(cmd, "weak-window", &practiceWeakWindow, fileCfg.Practice.WeakWindow)
	applyFloatConfig(cmd, "mastery-threshold", &practiceThreshold, fileCfg.Practice.MasteryThreshold)
	applyStringConfig(cmd, "log-level", &practiceLogLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "metrics-addr", &practiceMetrics, fileCfg.Metrics.Addr)

	mode, err := model.ParseMode(practiceMode)
	if err != nil {
		return err
	}
	if err := validatePractice(); err != nil {
		return err
	}

	custom, err := catalog.LoadCustom(fileCfg.Practice.WordLists, config.DefaultWordListDir())
	if err != nil {
		return err
	}
	cat := catalog.New(custom...)
	if practiceCategory == "" {
		practiceCategory = catalog.DefaultCategory(mode)
	}
	if _, ok := cat.Lookup(mode, practiceCategory); !ok {
		return fmt.Errorf("unknown %s category %q (run: liplearn catalog --mode %s)", mode, practiceCategory, mode)
	}

	logPath := config.DefaultLogPath()
	if fileCfg.Log.File != nil && *fileCfg.Log.File != "" {
		logPath = *fileCfg.Log.File
	}
	logFile, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			// Best-effort close of the log file.
			_ = cerr
		}
	}()
	log := logging.New(logFile, practiceLogLevel, false)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if practiceMetrics != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, practiceMetrics, log); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	client := api.NewClient(practiceServer, &http.Client{Timeout: requestTimeout}, log)
	src, err := newCameraSource(log)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	uiEvents, unsubscribeUI := bus.Subscribe(eventBuffer)
	defer unsubscribeUI()
	progressEvents, unsubscribeProgress := bus.SubscribeFunc(eventBuffer, progress.IsAttemptEvent)
	defer unsubscribeProgress()

	prog := progress.New(progress.Options{
		Store:     st,
		Remote:    client,
		Bus:       bus,
		Logger:    log,
		Threshold: practiceThreshold,
	})
	log.Info().
		Str("server", client.BaseURL()).
		Float64("mastery_threshold", prog.Threshold()).
		Msg("starting practice session")
	current, err := prog.Load(ctx)
	if err != nil {
		logErrf("failed to load progress: %v\n", err)
	}
	if err := prog.SyncFromServer(ctx); err != nil {
		log.Warn().Err(err).Msg("progress pull failed; continuing offline")
	} else {
		current = prog.Current()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		prog.RunSync(ctx, progress.DefaultSyncInterval)
	}()
	go func() {
		defer wg.Done()
		prog.Watch(ctx, progressEvents)
	}()

	prober := landmark.New(src, client, landmark.Options{Bus: bus, Logger: log})
	sess := session.New(session.Options{
		Camera:    src,
		Predictor: client,
		Bus:       bus,
		Cue:       &session.BellCue{W: os.Stderr},
		Prober:    prober,
		Logger:    log,
		Mode:      mode,
		Category:  practiceCategory,
		Target:    practiceTarget,
	})
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to release camera")
		}
	}()
	if err := sess.OpenCamera(ctx); err != nil {
		log.Error().Err(err).Msg("camera unavailable")
	}

	var weak tui.WeakFunc
	if practiceFocusWeak {
		weak = func(m model.Mode) map[string]struct{} {
			aggs, err := st.GetWeakLabels(ctx, practiceWeakWindow, m)
			if err != nil {
				log.Warn().Err(err).Msg("failed to load weak labels")
				return nil
			}
			return stats.SelectWeakLabels(aggs, practiceWeakTop)
		}
	}

	started := time.Now()
	ui := tui.NewModel(tui.Options{
		Session:    sess,
		Events:     uiEvents,
		Catalog:    cat,
		Picker:     generator.New(),
		FocusWeak:  practiceFocusWeak,
		WeakFactor: practiceWeakFactor,
		Weak:       weak,
		Progress:   current,
	})
	program := tea.NewProgram(ui, tea.WithAltScreen())
	_, runErr := program.Run()

	if err := prog.AddPracticeTime(ctx, time.Since(started)); err != nil {
		log.Warn().Err(err).Msg("failed to record practice time")
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

func newCameraSource(log zerolog.Logger) (camera.Source, error) {
	switch practiceCamera {
	case "dir":
		if practiceFramesDir == "" {
			return nil, fmt.Errorf("--frames-dir is required for the dir camera")
		}
		return camera.NewDirSource(practiceFramesDir), nil
	case "ffmpeg":
		return camera.NewFFmpegSource(practiceDevice, practiceWidth, practiceHeight, log), nil
	default:
		return nil, fmt.Errorf("unknown camera %q (want ffmpeg or dir)", practiceCamera)
	}
}

func validatePractice() error {
	if practiceServer == "" {
		return fmt.Errorf("--server must not be empty")
	}
	if practiceThreshold <= 0 || practiceThreshold > 1 {
		return fmt.Errorf("--mastery-threshold must be in (0, 1]")
	}
	if practiceWeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if practiceWeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if practiceWeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
