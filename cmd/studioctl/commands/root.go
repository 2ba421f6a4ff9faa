package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"studio/internal/app"
	"studio/internal/infra"
)

// flag names
const (
	flagRequest   = "request"
	flagParallel  = "parallel"
	flagText      = "text"
	flagQuality   = "quality"
	flagAvatarID  = "avatar-id"
	flagDuration  = "duration"
	flagNoStorage = "no-storage"
)

// Options wires the CLI to its environment. Zero values use stdout, stderr
// and an application built from the process environment.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// NewApp builds the application lazily; estimate commands never call it.
	NewApp func(logger *infra.Logger) (*app.App, error)
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.NewApp == nil {
		o.NewApp = appFromEnv
	}
	return o
}

func appFromEnv(logger *infra.Logger) (*app.App, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(app.Deps{Cfg: cfg, Logger: logger})
}

// NewRootCmd assembles the studioctl command tree.
func NewRootCmd(opts Options) *cobra.Command {
	opts = opts.withDefaults()

	root := &cobra.Command{
		Use:   "studioctl",
		Short: "studioctl - run generation jobs against the configured providers",
		Long: `studioctl submits storyboard, voice, avatar and video jobs described in JSON
job files, waits for them to finish and prints the outcome as JSON.
Provider credentials are read from the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newBatchCmd(opts))
	root.AddCommand(newEstimateCmd(opts))
	return root
}

// buildApp constructs the application with logs going to stderr.
func buildApp(opts Options) (*app.App, error) {
	logger := infra.NewLoggerTo(opts.Stderr, os.Getenv("APP_ENV"))
	return opts.NewApp(&logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
