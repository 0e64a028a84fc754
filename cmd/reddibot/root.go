package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/salcido/reddibot/internal/app"
	"github.com/salcido/reddibot/internal/config"
	"github.com/salcido/reddibot/internal/logging"
)

// cliContext loads config and builds the app lazily so commands like
// version work without any configuration.
type cliContext struct {
	configPath string
	dryRun     bool

	cfg *config.Config
	log *slog.Logger
}

func (c *cliContext) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if c.dryRun {
		// env beats the file in cleanenv, and validation must see it
		if err := os.Setenv("DRY_RUN", "true"); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *cliContext) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	level, format := "info", "json"
	if c.cfg != nil {
		level, format = c.cfg.Log.Level, c.cfg.Log.Format
	}
	c.log = logging.New(level, format)
	slog.SetDefault(c.log)
	return c.log
}

func (c *cliContext) app() (*app.App, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, c.logger())
}

func newRootCmd() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "reddibot",
		Short:         "Publish top subreddit posts to Twitter",
		Long:          "reddibot fetches top posts from a set of subreddits, filters and ranks them, skips anything already tweeted and publishes one post per interval.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetVersionTemplate("reddibot version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&ctx.dryRun, "dry-run", false, "Log statuses instead of posting them")

	rootCmd.AddCommand(newRunCmd(ctx))
	rootCmd.AddCommand(newTickCmd(ctx))
	rootCmd.AddCommand(newPreviewCmd(ctx))
	rootCmd.AddCommand(newConfigCmd(ctx))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
