package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recera/mdxlite/cmd/mdxlite/internal/config"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	verbose    bool
}

func main() {
	var flags globalFlags

	var rootCmd = &cobra.Command{
		Use:   "mdxlite",
		Short: "mdxlite - Markdown with embedded script expressions",
		Long: `mdxlite compiles Markdown documents that embed script expressions and
import/export statements into sanitized HTML. Each document is evaluated in
its own isolated interpreter.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file (default: mdxlite.yaml in the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(newCompileCommand(&flags))
	rootCmd.AddCommand(newBuildCommand(&flags))
	rootCmd.AddCommand(newDevCommand(&flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func (f *globalFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (f *globalFlags) loadConfig() (*config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath)
	}
	return config.Load(".")
}
