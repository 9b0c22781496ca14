package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/osvaldoandrade/tokengate/pkg/auth/jwks"
	_ "github.com/osvaldoandrade/tokengate/pkg/auth/static"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd(newUI()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, newUI().err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func newRootCmd(ui *ui) *cobra.Command {
	configPath := getenv("TOKENGATE_CONFIG_PATH", "")

	root := &cobra.Command{
		Use:   "tokengate",
		Short: "tokengate CLI",
		Long:  "tokengate CLI for checking configuration, signing keys, and bearer tokens.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Path to the YAML config (env overrides still apply)")

	root.AddCommand(configCmd(&configPath, ui))
	root.AddCommand(keysCmd(&configPath, ui))
	root.AddCommand(tokenCmd(&configPath, ui))
	return root
}

func helpTemplate(ui *ui) string {
	title := ui.title("tokengate")
	return fmt.Sprintf(`%s: bearer token validation toolkit

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Examples:
  tokengate config validate --config config.yaml
  tokengate keys fetch --config config.yaml
  tokengate token verify --config config.yaml --token eyJhbGciOi...
  pbpaste | tokengate token verify --config config.yaml

`, title)
}
