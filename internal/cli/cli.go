// Package cli implements the normfold command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/normfold/pkg/buildinfo"
	"github.com/matzehuels/normfold/pkg/cache"
	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/model"
)

// appName is the application name used for directories and display.
const appName = "normfold"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "normfold",
		Short: "normfold rewrites computation graphs into explicitly normalized form",
		Long: `normfold loads a model of pdfs and functions, propagates a normalization set
from a top node, wraps every pdf in a normalized node and folds the graph back
to its original wiring afterwards.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(withLogger(ctx, c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.unfoldCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Cache
// =============================================================================

// newCache returns the diagram cache, or a null cache when caching is off
// or the cache directory cannot be used.
func newCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return c
}

// cacheDir returns the cache directory using XDG standard (~/.cache/normfold/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Model Helpers
// =============================================================================

// loadModel reads the model document at path and logs how long it took.
func loadModel(ctx context.Context, path string) (*model.Model, error) {
	logger := loggerFromContext(ctx)
	logger.Debugf("Loading %s", path)
	prog := newProgress(logger)

	m, err := model.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	prog.done("Loaded " + path)
	return m, nil
}

// resolveTop returns the node named by name, or the document's top node
// when name is empty.
func resolveTop(m *model.Model, name string) (graph.NodeID, error) {
	if name == "" {
		if m.Top == graph.NoNode {
			return graph.NoNode, errors.New(errors.ErrCodeInvalidInput, "model names no top node; pass --top")
		}
		return m.Top, nil
	}
	n, ok := m.Graph.Find(name)
	if !ok {
		return graph.NoNode, errors.New(errors.ErrCodeNodeNotFound, "unknown top node %q", name)
	}
	return n.ID, nil
}

// resolveNorm parses a comma-separated list of variable names. An empty
// flag falls back to the document's normalization set.
func resolveNorm(m *model.Model, flag string) (graph.NormSet, error) {
	names := parseList(flag)
	if len(names) == 0 {
		return m.Norm, nil
	}
	return model.ResolveNames(m.Graph, names)
}

// parseList splits a comma-separated flag value, dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// openOutput returns a writer for path, or stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
