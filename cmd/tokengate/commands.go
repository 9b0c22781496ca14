package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/osvaldoandrade/tokengate/pkg/auth"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
	"github.com/osvaldoandrade/tokengate/pkg/config"
)

var errInvalidConfig = errors.New("configuration is invalid")

func configCmd(configPath *string, ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd.OutOrStdout(), *configPath, ui)
		},
	})
	return cmd
}

func keysCmd(configPath *string, ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect issuer signing keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "fetch",
		Short: "Fetch signing certificates from the metadata address",
		RunE: func(cmd *cobra.Command, args []string) error {
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
			spin.Suffix = " Fetching signing keys..."
			spin.Start()
			list, err := fetchCertificates(cmd.Context(), *configPath)
			spin.Stop()
			if err != nil {
				return err
			}
			printCertificates(cmd.OutOrStdout(), list, time.Now(), ui)
			return nil
		},
	})
	return cmd
}

func tokenCmd(configPath *string, ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Check bearer tokens",
	}
	var token string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Validate a token and print the resolved principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(token)
			if raw == "" {
				var err error
				raw, err = readToken(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			return runTokenVerify(cmd.Context(), cmd.OutOrStdout(), *configPath, raw, ui)
		},
	}
	verify.Flags().StringVar(&token, "token", "", "Bearer token (read from stdin or prompt when omitted)")
	cmd.AddCommand(verify)
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigOptional(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runConfigValidate(out io.Writer, path string, ui *ui) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	problems := cfg.Problems()
	if len(problems) == 0 {
		fmt.Fprintf(out, "%s Configuration is valid\n", ui.ok("[OK]"))
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "%s %s\n", ui.warn("  -"), p)
	}
	return errInvalidConfig
}

func newFetcher(cfg *config.Config) (certs.Fetcher, error) {
	fetcher, err := certs.NewFetcher(strings.TrimSpace(cfg.Auth.MetadataAddress), certs.FetcherOptions{Timeout: cfg.Auth.FetchTimeout()})
	if errors.Is(err, certs.ErrUnsupportedScheme) {
		return nil, fmt.Errorf("%w (supported: %s)", err, strings.Join(certs.ListFetchers(), ", "))
	}
	return fetcher, err
}

func fetchCertificates(ctx context.Context, path string) ([]certs.Certificate, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Auth.FetchTimeout())
	defer cancel()
	list, err := fetcher.Fetch(ctx)
	if certs.PartialResult(list, err) {
		fmt.Fprintln(os.Stderr, "warning:", err)
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, certs.ErrEmptySet
	}
	return list, nil
}

func printCertificates(out io.Writer, list []certs.Certificate, now time.Time, ui *ui) {
	fmt.Fprintf(out, "%s %d signing certificate(s)\n", ui.ok("[OK]"), len(list))
	fmt.Fprintf(out, "%-28s %-28s %-6s %-20s %-20s %s\n", "KEY ID", "THUMBPRINT", "ALG", "NOT BEFORE", "NOT AFTER", "STATUS")
	for _, c := range list {
		status := ui.ok("valid")
		if !c.ValidAt(now) {
			status = ui.warn("outside validity")
		}
		fmt.Fprintf(out, "%-28s %-28s %-6s %-20s %-20s %s\n",
			truncate(c.KeyID, 28),
			truncate(c.Thumbprint, 28),
			orDash(c.Algorithm),
			formatTime(c.NotBefore),
			formatTime(c.NotAfter),
			status,
		)
	}
}

func runTokenVerify(ctx context.Context, out io.Writer, path, token string, ui *ui) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Auth.Validate(); err != nil {
		return err
	}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := certs.NewCache()
	refresher := certs.NewRefresher(fetcher, cache, cfg.Auth.RefreshInterval(), cfg.Auth.FetchTimeout(), logger)
	if err := refresher.RefreshOnce(ctx); err != nil {
		return err
	}

	pipeline, err := auth.NewPipeline(cfg.Auth, cache)
	if err != nil {
		return err
	}
	principal, err := pipeline.Authenticate(ctx, token)
	if err != nil {
		fmt.Fprintf(out, "%s token rejected: %s\n", ui.err("[FAIL]"), auth.ReasonOf(err))
		return err
	}
	fmt.Fprintf(out, "%s %s %s\n", ui.ok("[OK]"), principal.UserID, ui.dim("("+principal.ClaimType+")"))
	return nil
}

func readToken(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no token provided")
	}
	return line, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
