package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rfrelay",
	Short: "Relay Robot Framework execution events to Report Portal",
	Long: "rfrelay reconciles a Robot Framework listener event stream into a\n" +
		"suite/test/keyword hierarchy and replays it to Report Portal.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
