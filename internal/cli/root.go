// Package cli is the lotdesk command line: setup, the servers, and the
// ranking and snapshot reports.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/envutil"
	"github.com/phillip-england/lotdesk/internal/logging"
	"github.com/phillip-england/lotdesk/internal/printer"
)

// globals are the flags every command shares.
type globals struct {
	verbose    bool
	configPath string
	envPath    string
	out        *printer.Printer
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	g := &globals{out: printer.New(out, errOut)}
	root := &cobra.Command{
		Use:   "lotdesk",
		Short: "lotdesk - sales dashboard for lot developments",
		Long: `lotdesk serves the sales admin dashboard in front of the sales REST
backend, plus a local development backend backed by SQLite.

Start with "lotdesk setup" to write a .env, then "lotdesk run all".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "lotdesk.yml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&g.envPath, "env", ".env", "path to the .env file")

	root.AddCommand(
		newSetupCommand(g),
		newRunCommand(g),
		newRankingCommand(g),
		newSnapshotCommand(g),
	)
	return root
}

// Execute runs the command line with args. Failures are already printed.
func Execute(args []string) error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.Execute()
}

// environment loads .env, then the config, then builds the logger.
func (g *globals) environment() (config.Config, *zap.Logger, error) {
	if err := envutil.LoadDotEnv(g.envPath); err != nil {
		return config.Config{}, nil, g.out.Error("No se pudo leer "+g.envPath, err.Error(),
			"Revise la sintaxis del archivo", "Vuelva a generarlo con: lotdesk setup --force")
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, g.out.Error("Configuración inválida", err.Error())
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, g.verbose)
	if err != nil {
		return config.Config{}, nil, g.out.Error("No se pudo iniciar el registro", err.Error())
	}
	return cfg, logger, nil
}

func syncLogger(logger *zap.Logger) {
	_ = logger.Sync()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func exactTarget(valid ...string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected one target: %v", valid)
		}
		for _, v := range valid {
			if args[0] == v {
				return nil
			}
		}
		return fmt.Errorf("unknown target %q, expected one of %v", args[0], valid)
	}
}
