package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/breedid/internal/breedclient"
	"github.com/okian/breedid/pkg/logger"
)

const (
	envURL         = "BREEDID_URL"
	defaultURL     = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
)

type commandContext struct {
	url     string
	timeout time.Duration
	verbose bool
}

func (c *commandContext) client() *breedclient.Client {
	return breedclient.New(c.url, breedclient.WithTimeout(c.timeout), breedclient.WithLogger(logger.Named("breedctl")))
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "breedctl",
		Short:         "Cattle breed identification CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := "warn"
			if ctx.verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	url := os.Getenv(envURL)
	if url == "" {
		url = defaultURL
	}
	rootCmd.PersistentFlags().StringVar(&ctx.url, "url", url, "Base URL of the service (env "+envURL+")")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeout, "timeout", defaultTimeout, "HTTP request timeout")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newBreedsCommand(ctx))
	rootCmd.AddCommand(newIdentifyCommand(ctx))
	rootCmd.AddCommand(newSmokeCommand(ctx))

	return rootCmd
}
