package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/rolltrack/internal/app"
	"github.com/dharsanguruparan/rolltrack/internal/config"
	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/logger"
)

type commandContext struct {
	projectFlag string
	jsonOutput  bool
	verbose     bool
	errOut      io.Writer

	once sync.Once
	app  *app.App
	err  error
}

// ensureApp loads configuration and opens the backend once per invocation.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		level := zerolog.WarnLevel
		if c.verbose {
			level = logger.ParseLevel(cfg.App.LogLevel)
		}
		logg := logger.New(logger.Options{
			ServiceName: "rolltrack-cli",
			Level:       level,
			Format:      "console",
			Output:      c.errOut,
		})
		c.app, c.err = app.Build(ctx, cfg, app.Options{Logger: logg})
	})
	return c.app, c.err
}

// project is the --project flag or, when unset, the canonical project.
func (c *commandContext) project(a *app.App) string {
	if p := strings.TrimSpace(c.projectFlag); p != "" {
		return p
	}
	return a.Service.CanonicalProject()
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

func newRootCommand(cc *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rolltrack",
		Short:         "Film stock inventory for a production",
		Long:          "rolltrack keeps the ledger of film rolls on a production: what is on set, what comes out of the camera and what goes to the lab.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cc.projectFlag, "project", "p", "", "Project to work on (defaults to ROLLTRACK_SEED_PROJECT)")
	rootCmd.PersistentFlags().BoolVar(&cc.jsonOutput, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&cc.verbose, "verbose", "v", false, "Log at the configured ROLLTRACK_LOG_LEVEL instead of warnings only")

	rootCmd.AddCommand(
		newProjectsCommand(cc),
		newListCommand(cc),
		newCandidatesCommand(cc),
		newDashboardCommand(cc),
		newUnloadCommand(cc),
		newShipCommand(cc),
		newCreateCommand(cc),
		newEditCommand(cc),
		newResetCommand(cc),
	)
	return rootCmd
}

// execute runs one CLI invocation and releases the backend afterwards.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	cc := &commandContext{errOut: errOut}
	rootCmd := newRootCommand(cc)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := cc.close(); err == nil {
		err = closeErr
	}
	return err
}

// describeError renders typed failures with their field details.
func describeError(err error) string {
	typed := apperr.As(err)
	if typed == nil {
		return err.Error()
	}
	msg := typed.Message()
	details, ok := typed.Details().(map[string]string)
	if !ok || len(details) == 0 {
		return msg
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, details[k]))
	}
	return fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
}
