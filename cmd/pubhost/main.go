// Command pubhost runs the blog host and manages its accounts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pubhost",
	Short: "Multi-tenant blog host built with Go, Echo, and templ",
	Long: `pubhost serves blogs under /blog/<subdirectory>/ and the dashboard
their owners write in.

Configuration is read from the YAML file given with --config (optional)
and PUBHOST_* / STRIPE_* environment variables.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pubhost version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pubhost %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pubhost.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, userCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
