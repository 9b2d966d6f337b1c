package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/config"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/creators"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/review"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/submissions"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
)

// commandContext loads configuration once and builds the stores commands share
type commandContext struct {
	configFlag *string

	once   sync.Once
	config *config.Config
	err    error
	logger *logging.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = "config.yaml"
		}
		c.config, c.err = config.LoadOrDefault(path)
		if c.err != nil {
			return
		}
		c.logger = logging.NewWithWriter(os.Stderr, logging.Config{
			Level:  "warn",
			Format: "console",
		})
	})
	return c.config, c.err
}

func (c *commandContext) catalogStore() (*catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.New(cfg.Data.CatalogPath, cfg.Data.LockDir, c.logger), nil
}

// reviewService wires the local stores without the optional backends
func (c *commandContext) reviewService() (*review.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	subs := subtitles.NewStore(cfg.Data.SubtitlesRoot, cfg.Data.StagingRoot)
	fetcher := subtitles.NewFetcher(nil)
	fetcher.SetFileRoot(cfg.Data.MirrorRoot)
	subs.SetFetcher(fetcher)

	return review.NewService(review.Options{
		Catalog:     catalog.New(cfg.Data.CatalogPath, cfg.Data.LockDir, c.logger),
		Submissions: submissions.New(cfg.Data.SubmissionsPath, cfg.Data.LockDir),
		Subtitles:   subs,
		Creators:    creators.New(cfg.Data.CreatorMappingsPath, cfg.Data.LockDir),
		Logger:      c.logger,
	}), nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Subtitle catalog maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newVersionsCommand(ctx))
	rootCmd.AddCommand(newReapplyCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))
	rootCmd.AddCommand(newEventsCommand(ctx))

	return rootCmd
}
