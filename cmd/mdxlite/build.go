package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/recera/mdxlite/cmd/mdxlite/internal/config"
	"github.com/recera/mdxlite/cmd/mdxlite/internal/ui"
)

// errDocumentsFailed is returned by a build in which some documents did not
// compile
var errDocumentsFailed = errors.New("some documents failed to compile")

func newBuildCommand(flags *globalFlags) *cobra.Command {
	var output string
	var workers int
	var noCache bool
	var clean bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile every document in the content directory",
		Long: `Compiles each .md and .mdx file under the content directory to an HTML
file in the output directory, keeping the directory layout. Unchanged
documents are served from the render cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			// Flags take precedence over the configuration file
			if cmd.Flags().Changed("out") {
				cfg.Build.Output = output
			}
			if cmd.Flags().Changed("workers") {
				cfg.Build.Workers = workers
			}
			if noCache {
				cfg.Build.NoCache = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runBuild(cmd.Context(), cfg, flags.logger(), clean, plain || !ui.IsTerminal())
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "dist", "Output directory")
	cmd.Flags().IntVarP(&workers, "workers", "j", 4, "Documents compiled in parallel")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Do not read or write the render cache")
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove the output directory first")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one line per document instead of the progress view")

	return cmd
}

func runBuild(ctx context.Context, cfg *config.Config, logger *slog.Logger, clean, plain bool) error {
	s, err := newSite(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := s.documents()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("No documents found in %s", cfg.ContentDir)))
		return nil
	}

	if clean {
		if err := os.RemoveAll(cfg.Build.Output); err != nil {
			return fmt.Errorf("failed to clean output directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.Build.Output, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	b := &builder{site: s, output: cfg.Build.Output, workers: cfg.Build.Workers}

	if plain {
		r := ui.NewPlainReporter(os.Stdout)
		err = b.build(ctx, docs, r)
		r.Finish(err)
	} else {
		_, err = ui.RunBuild(ctx, docs, func(ctx context.Context, r ui.Reporter) error {
			return b.build(ctx, docs, r)
		})
	}

	if s.cache != nil {
		stats := s.cache.Stats()
		logger.Debug("render cache", "hits", stats.Hits, "misses", stats.Misses,
			"evictions", stats.Evictions, "entries", stats.Entries, "size", ui.FormatSize(stats.Size))
	}
	return err
}

// builder writes the rendered documents of a site to an output directory
type builder struct {
	site    *site
	output  string
	workers int
}

// build renders docs with up to b.workers documents in flight. A document
// that fails to compile is reported and does not stop the others.
func (b *builder) build(ctx context.Context, docs []string, r ui.Reporter) error {
	g, gctx := errgroup.WithContext(ctx)
	if b.workers > 0 {
		g.SetLimit(b.workers)
	}

	var failed atomic.Bool
	for _, rel := range docs {
		if gctx.Err() != nil {
			break
		}
		rel := rel
		g.Go(func() error {
			r.FileStarted(rel)
			result, err := b.buildOne(gctx, rel)
			r.FileDone(result)
			if result.Err != nil {
				failed.Store(true)
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed.Load() {
		return errDocumentsFailed
	}
	return nil
}

// buildOne renders and writes one document. Compile failures are recorded
// on the result; only output errors and cancellation are returned.
func (b *builder) buildOne(ctx context.Context, rel string) (ui.FileResult, error) {
	start := time.Now()
	result := ui.FileResult{Path: rel, Output: filepath.Join(b.output, filepath.FromSlash(outputName(rel)))}

	data, cached, err := b.site.render(ctx, rel)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(result.Output), 0755); err != nil {
		result.Err = err
		return result, err
	}
	if err := os.WriteFile(result.Output, data, 0644); err != nil {
		result.Err = err
		return result, fmt.Errorf("failed to write %s: %w", result.Output, err)
	}

	result.Cached = cached
	result.Size = int64(len(data))
	return result, nil
}
