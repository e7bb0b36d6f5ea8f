package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/bookmarketer/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage the configuration file",
		Annotations: map[string]string{annotationNoApp: "true"},
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigPathCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var provider string
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Long:        "Write the default configuration. The API key is stored as a reference to the provider's environment variable.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch provider {
			case config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGemini, config.ProviderMock:
			default:
				return fmt.Errorf("unknown provider %q", provider)
			}
			path := a.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			cfg.AI.Provider = provider
			if err := config.Write(cfg, path); err != nil {
				return err
			}
			msg := "Wrote " + path
			if env := config.APIKeyEnv(provider); env != "" {
				msg += "; set " + env + " before running steps"
			}
			a.output().Success(msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", config.ProviderAnthropic, "Model provider (anthropic, openai, gemini or mock)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file location",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.stdout, a.configPath())
			return err
		},
	}
}

func (a *app) configPath() string {
	if a.opts.configPath != "" {
		return a.opts.configPath
	}
	return config.Path()
}
