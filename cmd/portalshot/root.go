package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	plog "github.com/nao1215/portalshot/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for portalshot.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalshot",
		Short: "Screenshot and catalogue internet-facing portals",
		Long: `portalshot captures a screenshot of every URL in a target list, groups
pages that render identically, and produces a color-coded report of the
exposed portals together with a change log of page fingerprints.

HTTPS URLs are listed in black, HTTP URLs in red and URLs on non-standard
ports in brown.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCaptureCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getGlobalBool(cmd, "verbose")
}

// getGlobalBool reads a persistent root flag from cmd, falling back to the
// root command when the flags have not been merged yet.
func getGlobalBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the redacting logger selected by the global flags.
func setupLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	if getGlobalBool(cmd, "log-json") {
		return plog.NewSecureJSONLogger(w, verbose)
	}
	return plog.NewSecureLogger(w, verbose)
}
