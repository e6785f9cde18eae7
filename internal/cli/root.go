// Package cli defines the Cobra command tree for the vectorify CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vectorify",
	Short: "Multi-layer text embedding with a persistent vector cache",
	Long: `Vectorify turns JSONL text records into embedding vectors.

Several embedding layers (TF-IDF, feature hashing, topic distributions,
OpenAI, Ollama, Gemini) run side by side and their vectors are fused into
one output vector per record. Every layer result is cached by content
fingerprint, so re-running over an updated corpus only pays for new text.

Run 'vectorify process --input data.jsonl --config layers.json' to start.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		newProcessCmd(),
		newCacheCmd(),
		newValidateCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vectorify %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
