package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// app carries the persistent flags and the configuration loaded for every
// subcommand.
type app struct {
	cfgFile string
	debug   bool
	logFile string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "translate-tool",
		Short: "Layout-aware document translation",
		Long: `translate-tool extracts the text of PDF, DOCX, PPTX, XLSX and plain text
documents, translates it with an OpenAI-compatible chat model and writes
the result in one of three layouts:

  inline        each original paragraph followed by its translation (docx, md,
                pptx and xlsx from the same format)
  overlay       translation drawn over the masked original text (pdf)
  side_by_side  original page next to its translated copy (pdf)`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Close() },
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.translate-tool.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "debug logging on stderr")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "log file path (overrides log.file)")

	root.AddCommand(
		a.parseCommand(),
		a.translateCommand(),
		a.renderCommand(),
		a.fontsCommand(),
		a.jobsCommand(),
	)
	return root
}

// setup loads .env, the config file and initializes logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.NewAppError(types.ErrConfig, "failed to read .env", err)
	}

	mgr, err := config.NewConfigManager(a.cfgFile)
	if err != nil {
		return err
	}
	if err := mgr.Load(); err != nil {
		return err
	}
	a.cfg = mgr.GetConfig()

	lc := a.cfg.LoggerConfig()
	if a.logFile != "" {
		lc.LogFilePath = a.logFile
	}
	if a.debug {
		lc.Level = logger.LevelDebug
		lc.EnableConsole = true
	}
	if err := logger.Init(lc); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to initialize logger", err)
	}
	logger.Debug("command started",
		logger.String("command", cmd.Name()),
		logger.String("config", mgr.GetConfigPath()))
	return nil
}

// progressPrinter writes one status line per update. Updates may come from
// several batch workers.
func progressPrinter(w io.Writer) types.ProgressFunc {
	var mu sync.Mutex
	return func(s types.Status) {
		mu.Lock()
		defer mu.Unlock()
		if s.Phase == types.PhaseError {
			fmt.Fprintf(w, "[%s] %s\n", s.Phase, s.Error)
			return
		}
		fmt.Fprintf(w, "[%3d%%] %s\n", s.Progress, s.Message)
	}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
