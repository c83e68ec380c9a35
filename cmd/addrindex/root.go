// root.go wires the command tree and the state every command shares.
//
// The index is opened lazily in PersistentPreRunE so that "check", which
// only inspects a file, never creates an index directory as a side effect.

package main

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sonroyaalmerol/addrindex/internal/addrindex"
	"github.com/sonroyaalmerol/addrindex/internal/config"
	"github.com/sonroyaalmerol/addrindex/internal/logging"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

// app is what the commands operate on once the root command has run.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	index  *addrindex.Index

	dir      string
	logLevel string
	output   string
}

// commands that never open the index
var noIndexCommands = map[string]bool{
	"check":      true,
	"help":       true,
	"completion": true,
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "addrindex",
		Short:        "Manage the address book index and its data sources",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "address book directory (default $ADDRBOOK_DIR)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (default $LOG_LEVEL)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "output format: json or yaml (default text)")

	root.AddCommand(
		a.newListCmd(),
		a.newShowCmd(),
		a.newQueryCmd(),
		a.newCheckCmd(),
		a.newAddBookCmd(),
		a.newAddSourceCmd(),
		a.newRemoveCmd(),
		a.newAddContactCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.output != "" && !slices.Contains(validOutputFormats, a.output) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", a.output, validOutputFormats)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.dir != "" {
		cfg.Index.Dir = a.dir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel)

	if noIndexCommands[cmd.Name()] {
		return nil
	}
	return a.openIndex()
}

// openIndex reads the index file, creating the default books when there is
// none yet.
func (a *app) openIndex() error {
	ix := addrindex.New(a.logger)
	ix.SetFilePath(a.cfg.Index.Dir)
	ix.SetFileName(a.cfg.Index.File)

	switch code := ix.Read(); code {
	case status.Success:
	case status.NoFile:
		a.logger.Info().Str("dir", a.cfg.Index.Dir).Msg("no address index, creating default books")
		if code := ix.CreateDefaultBooks(); code != status.Success {
			return fmt.Errorf("create default books: %w", code)
		}
		if code := ix.Save(); code != status.Success {
			return fmt.Errorf("write %s: %w", ix.FullPath(), code)
		}
	default:
		return fmt.Errorf("read %s: %w", ix.FullPath(), code)
	}
	a.index = ix
	return nil
}

// sourceByName looks a data source up by its display name.
func (a *app) sourceByName(name string) (*addrindex.DataSource, error) {
	ds := a.index.FindDataSource(name)
	if ds == nil {
		return nil, fmt.Errorf("no data source named %q", name)
	}
	return ds, nil
}

// persist writes the index file if its source list changed.
func (a *app) persist() error {
	if !a.index.Dirty() {
		return nil
	}
	if code := a.index.Save(); code != status.Success {
		return fmt.Errorf("write %s: %w", a.index.FullPath(), code)
	}
	return nil
}
