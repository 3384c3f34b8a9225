// Package cmd defines and implements the CLI commands for the web-archiver executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/web-archiver/internal/app"
	"github.com/JakeFAU/web-archiver/internal/config"
	"github.com/JakeFAU/web-archiver/internal/storage/memory"
)

const closeTimeout = 30 * time.Second

// cli carries flag values and the application built for the running command.
type cli struct {
	cfgFile   string
	dryRun    bool
	overrides []config.Option
	appOpts   []app.Option
	stdin     io.Reader
	stdout    io.Writer

	app *app.App
}

// newRootCmd creates and configures the root command.
func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web-archiver",
		Short: "Archive web pages with the Wayback Machine, archive.today and ArchiveBox.",
		Long: `web-archiver submits URLs to every enabled archiving provider, tracks the
state of each (record, provider) pair in a durable document, and reports
the snapshot links once providers have captured the page.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application after flags are parsed and before the
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVar(&c.dryRun, "dry-run", false, "keep records in memory instead of store.location")

	cmd.AddCommand(
		newArchiveCmd(c),
		newServeCmd(c),
		newListCmd(c),
		newReconcileCmd(c),
		newPasteCmd(c),
	)
	return cmd
}

func (c *cli) setup(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(c.cfgFile, c.overrides...)
	if err != nil {
		return err
	}
	opts := append([]app.Option(nil), c.appOpts...)
	if c.dryRun {
		opts = append(opts, app.WithBackend(memory.New()))
	}
	a, err := app.Build(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.app = a
	return nil
}

func (c *cli) resolveApp() (*app.App, error) {
	if c.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return c.app, nil
}

// execute runs the command line in args and always closes the app, even when
// the subcommand failed, so pending store mutations reach the backend.
func (c *cli) execute(ctx context.Context, args []string) error {
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	runErr := root.ExecuteContext(ctx)

	if c.app == nil {
		return runErr
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	closeErr := c.app.Close(closeCtx)
	c.app = nil
	return errors.Join(runErr, closeErr)
}

// Execute is the main entry point.
func Execute() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout}
	if err := c.execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
