package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"askthecity/client"
	"askthecity/config"
	"askthecity/model"
	"askthecity/server"
	"askthecity/ui"
)

const Version = "v0.01.00"

var (
	configPath string
	logPath    string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "askthecity",
		Short:   "Chat with Toronto's open data catalog",
		Long:    `Ask The City streams answers from a hosted language model, letting it look up datasets through an MCP tool proxy.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.InitDebugLog(logPath)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("ASKCITY_CONFIG"), "path to config.toml")
	root.PersistentFlags().StringVar(&logPath, "log", "", "debug log file (with ASKCITY_DEBUG=1; default stderr)")

	root.AddCommand(serveCmd(), chatCmd(), askCmd(), initConfigCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generate endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if !config.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			deps, err := server.DefaultDeps(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Ask The City listening on %s (provider %s)\n", cfg.Server.Listen, cfg.Generation.Provider)
			return server.Run(ctx, cfg, deps)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			c := client.New(client.OptionsFromConfig(cfg), nil)
			p := tea.NewProgram(ui.NewAppView(c, cfg.Client.Endpoint), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running chat: %w", err)
			}
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Stream one answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			c := client.New(client.OptionsFromConfig(cfg), nil)
			out := cmd.OutOrStdout()
			printer := &replyPrinter{conv: c.Conversation(), w: out}

			err = c.Send(ctx, strings.Join(args, " "), printer.update)
			printer.update()
			fmt.Fprintln(out)

			var cerr *client.Error
			if errors.As(err, &cerr) && cerr.Details != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "details: %s\n", cerr.Details)
			}
			return err
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a commented config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.GetConfigFilePath()
			}
			written, err := config.WriteConfigTemplate(path)
			if err != nil {
				return err
			}
			if !written {
				return fmt.Errorf("%s already exists", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
}

// replyPrinter writes the streaming reply incrementally. When the reply is
// replaced rather than extended (tool indicator, retry, failure) it starts
// a new line.
type replyPrinter struct {
	conv    *client.Conversation
	w       io.Writer
	printed string
}

func (p *replyPrinter) update() {
	last, ok := p.conv.Last()
	if !ok || last.Role != model.RoleAssistant {
		return
	}
	content := last.Content
	switch {
	case content == p.printed:
		return
	case strings.HasPrefix(content, p.printed):
		fmt.Fprint(p.w, content[len(p.printed):])
	default:
		if p.printed != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprint(p.w, content)
	}
	p.printed = content
}
