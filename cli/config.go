// ABOUTME: Configuration commands
// ABOUTME: Interactive config init with a hidden API key prompt, and a redacted config show
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/hotgluexyz/target-everyaction/everyaction"
	"github.com/hotgluexyz/target-everyaction/sync"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage EveryAction credentials and settings",
	}
	cmd.AddCommand(newConfigInitCommand(root), newConfigShowCommand(root))
	return cmd
}

func newConfigInitCommand(root *rootOptions) *cobra.Command {
	var cfg sync.Config

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file, prompting for anything not given as a flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if cfg.AppName == "" {
				v, err := prompt(in, out, "Application name: ")
				if err != nil {
					return fmt.Errorf("failed to read application name: %w", err)
				}
				cfg.AppName = v
			}

			if cfg.APIKey == "" {
				v, err := promptSecret(cmd.InOrStdin(), in, out, "API key: ")
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				cfg.APIKey = v
			}

			if !cmd.Flags().Changed("only-empty") {
				v, err := prompt(in, out, "Only fill empty fields on existing people? [y/N]: ")
				if err != nil && err != io.EOF {
					return fmt.Errorf("failed to read answer: %w", err)
				}
				cfg.OnlyUpsertEmptyFields = strings.EqualFold(v, "y") || strings.EqualFold(v, "yes")
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			path := root.configPath
			if path == "" {
				path = sync.ConfigPath()
			}
			if err := sync.SaveConfigTo(&cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(out, "✓ Configuration saved to %s\n", path)
			_, _ = fmt.Fprintln(out, "\nReady to upsert! Pipe a tap into 'target-everyaction sync'.")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.AppName, "app-name", "", "EveryAction application name")
	f.StringVar(&cfg.APIKey, "api-key", "", "EveryAction API key (prompted without echo when omitted)")
	f.BoolVar(&cfg.OnlyUpsertEmptyFields, "only-empty", false, "Only fill fields that are empty on existing people")
	f.StringVar(&cfg.BaseURL, "base-url", "", "API base URL (default: "+everyaction.DefaultBaseURL+")")
	f.Float64Var(&cfg.RateLimit, "rate-limit", 0, "Maximum requests per second (0: unlimited)")
	f.StringVar(&cfg.DatabasePath, "journal-path", "", "Journal database path")

	return cmd
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (err != io.EOF || line == "") {
		return line, err
	}
	return line, nil
}

// promptSecret reads without echo when raw is a terminal.
func promptSecret(raw io.Reader, in *bufio.Reader, out io.Writer, label string) (string, error) {
	f, ok := raw.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(in, out, label)
	}

	_, _ = fmt.Fprint(out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func newConfigShowCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with the API key redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sync.LoadConfig(root.configPath)
			if err != nil {
				return err
			}

			path := root.configPath
			if path == "" {
				path = sync.ConfigPath()
			}

			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "# %s\n", path)
			_, _ = out.Write(data)
			_, _ = fmt.Fprintf(out, "# journal: %s\n", root.journalPath(cfg))
			if err := cfg.Validate(); err != nil {
				_, _ = fmt.Fprintf(out, "# ✗ %v\n", err)
			}
			return nil
		},
	}
}
