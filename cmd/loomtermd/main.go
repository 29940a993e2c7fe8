// Command loomtermd runs a shell inside loomterm's terminal interpreter,
// rendering it to the controlling terminal and optionally exposing a
// read-only diagnostics surface over HTTP/WebSocket.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loomterm/loomterm/internal/config"
	"github.com/loomterm/loomterm/internal/diag"
	"github.com/loomterm/loomterm/internal/host"
	"github.com/loomterm/loomterm/internal/hostio"
)

var (
	flagConfigPath string
	flagWidth      int
	flagHeight     int
	flagShell      string
	flagDiagAddr   string
	flagNoDiag     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loomtermd",
	Short: "A character-cell ANSI terminal interpreter daemon",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfigPath, "config", config.Path(), "path to TOML configuration file")
	flags.IntVar(&flagWidth, "width", 0, "screen width in columns (overrides config)")
	flags.IntVar(&flagHeight, "height", 0, "screen height in rows (overrides config)")
	flags.StringVar(&flagShell, "shell", "", "shell to run (overrides config and $SHELL)")
	flags.StringVar(&flagDiagAddr, "diag-addr", "", "diagnostics HTTP/WebSocket listen address (overrides config)")
	flags.BoolVar(&flagNoDiag, "no-diag", false, "disable the diagnostics server entirely")
}

func run(cmd *cobra.Command, args []string) error {
	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	log, err := newLogger(level)
	if err != nil {
		return fmt.Errorf("loomtermd: logger: %w", err)
	}
	defer log.Sync()

	store, err := config.NewStore(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loomtermd: config: %w", err)
	}
	cfg := store.Get()
	applyFlagOverrides(cfg)

	// The env var, when set, always wins over the config file.
	if env := os.Getenv("LOOMTERMD_LOG_LEVEL"); env != "" {
		if err := level.UnmarshalText([]byte(env)); err != nil {
			log.Warn("ignoring invalid $LOOMTERMD_LOG_LEVEL", zap.String("value", env), zap.Error(err))
		}
	} else if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			log.Warn("ignoring invalid configured log level", zap.String("log_level", cfg.LogLevel), zap.Error(err))
		}
	}

	watcher := config.NewWatcher(store, log)
	if err := watcher.Start(); err != nil {
		log.Warn("config hot-reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	session, err := host.New(host.Options{
		Width:       cfg.Width,
		Height:      cfg.Height,
		RXFifoDepth: cfg.RXFifoDepth,
		TXFifoDepth: cfg.TXFifoDepth,
	}, log)
	if err != nil {
		return fmt.Errorf("loomtermd: session: %w", err)
	}

	var diagServer *diag.Server
	if !flagNoDiag {
		diagServer = diag.New(session, log)
		go func() {
			if err := diagServer.Run(cfg.DiagAddr); err != nil {
				log.Warn("diagnostics server stopped", zap.Error(err))
			}
		}()
		defer diagServer.Close()
	}

	term := hostio.New(session, log)
	if err := term.Start(); err != nil {
		return fmt.Errorf("loomtermd: terminal: %w", err)
	}

	if err := session.Start(cfg.Shell, ""); err != nil {
		term.Stop()
		return fmt.Errorf("loomtermd: start shell: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		session.Close()
	}()

	session.Wait()
	term.Stop()
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if flagWidth > 0 {
		cfg.Width = flagWidth
	}
	if flagHeight > 0 {
		cfg.Height = flagHeight
	}
	if flagShell != "" {
		cfg.Shell = flagShell
	}
	if flagDiagAddr != "" {
		cfg.DiagAddr = flagDiagAddr
	}
}

// newLogger builds a production zap.Logger whose level is controlled by
// the given atomic level, so the level can be set from the env var or the
// loaded config after the logger exists, without rebuilding it.
func newLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	return zcfg.Build()
}
