package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect goguard configuration files",
	}
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var strict, watch bool

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Load and validate a config file, then print its security report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := cmd.OutOrStdout()

			if !watch {
				return checkConfig(out, path, strict)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report := func() {
				if err := checkConfig(out, path, strict); err != nil {
					fmt.Fprintf(out, "Config: %s (invalid)\n  %v\n", path, err)
				}
			}
			report()
			return watchFile(ctx, path, watchDebounce, report)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the report has warnings")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-check the file every time it changes")
	return cmd
}

func checkConfig(out io.Writer, path string, strict bool) error {
	cfg, err := goGuard.LoadConfigFile(path)
	if err != nil {
		return err
	}
	report, err := goGuard.CheckConfig(cfg)
	if err != nil {
		return err
	}
	printReport(out, path, report)
	if strict && len(report.Warnings) > 0 {
		return fmt.Errorf("%d warning(s) in %s", len(report.Warnings), path)
	}
	return nil
}

func printReport(w io.Writer, path string, r goGuard.SecurityReport) {
	fmt.Fprintf(w, "Config: %s (valid)\n", path)
	fmt.Fprintf(w, "  Signing:       %s\n", r.SigningAlgorithm)
	fmt.Fprintf(w, "  Access TTL:    %s\n", r.AccessTTL)
	fmt.Fprintf(w, "  Idle timeout:  %s\n", r.IdleTimeout)
	fmt.Fprintf(w, "  Blacklist TTL: %s\n", r.MaxTokenLifetime)

	if r.RateLimitingActive {
		fmt.Fprintln(w, "  Rate limits:")
		for _, p := range r.RatePolicies {
			line := fmt.Sprintf("    - %s: %d per %s", p.Path, p.Limit, p.Window)
			if p.BlockDuration > 0 {
				line += fmt.Sprintf(", block %s", p.BlockDuration)
			}
			fmt.Fprintln(w, line)
		}
	} else {
		fmt.Fprintln(w, "  Rate limits:   disabled")
	}

	fmt.Fprintf(w, "  Roles:         %s\n", strings.Join(r.Roles, ", "))
	fmt.Fprintf(w, "  Routes:        %d protected, %d public\n", r.ProtectedRoutes, r.PublicRoutes)
	fmt.Fprintf(w, "  CORS:          %t\n", r.CORSEnabled)
	fmt.Fprintf(w, "  Audit:         %t\n", r.AuditEnabled)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
	}
}
