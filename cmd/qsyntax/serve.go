package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/qsyntax/internal/config"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/mcp"
	"github.com/hpungsan/qsyntax/internal/web"
)

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8765, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
			}

			m, err := env.Manager(c.Context)
			if err != nil {
				return err
			}
			srv, err := web.NewServer(m, env.cfg, env.logger, Version, c.String("bind"), port)
			if err != nil {
				return err
			}
			return web.Run(srv, env.logger)
		},
	}
}

// configCmd creates the config command group.
func configCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage ~/.qsyntax/config.yaml",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config file with the defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Value: string(config.ProviderGoogle), Usage: "Remote provider: google|openai"},
					&cli.StringFlag{Name: "model", Usage: "Model name (provider default when empty)"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := config.Path(env.opts.BaseDir)
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return outputError(errors.NewInvalidRequest(fmt.Sprintf("%s already exists (use --force to overwrite)", path)))
					}

					cfg := config.DefaultConfig()
					cfg.Provider = config.ProviderType(c.String("provider"))
					if cfg.Provider == config.ProviderOpenAI {
						cfg.Model = "gpt-4o-mini"
					}
					if model := c.String("model"); model != "" {
						cfg.Model = model
					}
					if err := cfg.Validate(); err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					if err := cfg.Save(env.opts.BaseDir); err != nil {
						return outputError(errors.NewInternal(err))
					}

					fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
					fmt.Fprintf(c.App.Writer, "Set %s or api_key in the file to enable replies.\n", config.APIKeyEnvVar(cfg.Provider))
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration (file plus QSYNTAX_* overrides)",
				Action: func(c *cli.Context) error {
					cfg, err := env.Config()
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					shown := *cfg
					if shown.APIKey != "" {
						shown.APIKey = "********"
					}
					data, err := yaml.Marshal(&shown)
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					_, err = c.App.Writer.Write(data)
					return err
				},
			},
			{
				Name:  "validate",
				Usage: "Check the configuration and the disabled_tools names",
				Action: func(c *cli.Context) error {
					cfg, err := env.Config()
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
						return outputError(errors.NewInvalidRequest(fmt.Sprintf(
							"unknown tools in disabled_tools: %s (valid: %s)",
							strings.Join(unknown, ", "), strings.Join(mcp.AllToolNames(), ", "))))
					}
					if cfg.ResolveAPIKey() == "" {
						fmt.Fprintf(c.App.ErrWriter, "warning: no API key (set api_key or %s)\n", config.APIKeyEnvVar(cfg.Provider))
					}
					fmt.Fprintln(c.App.Writer, "config OK")
					return nil
				},
			},
		},
	}
}
