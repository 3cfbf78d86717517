// Command cortex runs the context-assembly and tool-orchestration core.
//
// Usage:
//
//	export GEMINI_API_KEY="your-api-key"
//	cortex serve
//	cortex chat
//	cortex compile "what is on my plate?" --session <id>
//	cortex memory store <key> <text>
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nstogner/cortex/pkg/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex - context assembly and tool orchestration for LLM agents",
	Long: `Cortex compiles a working context for every user message from session
history, long-term memory, artifacts, facts and knowledge layers, then drives
the model through at most one tool call per directive.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, chatCmd, compileCmd, memoryCmd)
}

// loadConfig loads the configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
