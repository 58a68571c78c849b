package main

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recera/mdxlite/cmd/mdxlite/internal/config"
	"github.com/recera/mdxlite/internal/cache"
	"github.com/recera/mdxlite/pkg/mdx"
	"github.com/recera/mdxlite/pkg/renderer/html"
)

// site renders the documents of a content directory. Rendered output is
// cached by source and configuration fingerprint.
type site struct {
	contentDir  string
	compileOpts mdx.Options
	renderOpts  html.Options
	fingerprint string
	cache       *cache.Cache
	logger      *slog.Logger
}

func newSite(cfg *config.Config, logger *slog.Logger) (*site, error) {
	fingerprint, err := cfg.Fingerprint()
	if err != nil {
		return nil, err
	}

	s := &site{
		contentDir:  cfg.ContentDir,
		compileOpts: cfg.CompileOptions(logger),
		renderOpts:  cfg.RenderOptions(),
		fingerprint: fingerprint,
		logger:      logger,
	}

	if !cfg.Build.NoCache {
		cacheCfg := cache.DefaultConfig()
		if cfg.Build.CacheDir != "" {
			cacheCfg.Dir = cfg.Build.CacheDir
		}
		cacheCfg.MaxSize = cfg.Build.CacheMaxSize
		cacheCfg.Logger = logger

		s.cache, err = cache.Open(cacheCfg)
		if err != nil {
			// Continue without cache
			logger.Warn("failed to open render cache", "error", err)
		}
	}

	return s, nil
}

// Close flushes the cache index
func (s *site) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// documents lists the documents under the content directory as slash
// separated paths relative to it, sorted.
func (s *site) documents() ([]string, error) {
	var docs []string
	err := filepath.WalkDir(s.contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.contentDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isDocument(path) {
			return nil
		}
		rel, err := filepath.Rel(s.contentDir, path)
		if err != nil {
			return err
		}
		docs = append(docs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.contentDir, err)
	}
	sort.Strings(docs)
	return docs, nil
}

// render renders the document at rel, a path from documents
func (s *site) render(ctx context.Context, rel string) (data []byte, cached bool, err error) {
	source, err := os.ReadFile(filepath.Join(s.contentDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, false, err
	}

	key := cache.Key(source, s.fingerprint)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, true, nil
		}
	}

	var buf bytes.Buffer
	if err := mdx.Render(ctx, string(source), s.compileOpts, s.renderOpts, &buf); err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Put(key, buf.Bytes(), rel); err != nil {
			s.logger.Warn("failed to cache document", "path", rel, "error", err)
		}
	}
	return buf.Bytes(), false, nil
}

// invalidate drops cached output of rel
func (s *site) invalidate(rel string) {
	if s.cache == nil {
		return
	}
	if n := s.cache.InvalidateSource(rel); n > 0 {
		s.logger.Debug("cache invalidated", "path", rel, "entries", n)
	}
}

// outputName maps a document path to its HTML file name
func outputName(rel string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
}
