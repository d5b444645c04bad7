// Package tagging composes tag generation with content-addressed caching.
package tagging

import (
	"context"
	"log/slog"

	"github.com/mkorchagin/photostock/internal/core/ports"
	"github.com/mkorchagin/photostock/internal/core/usecase"
)

// CachedGenerator decorates a TagGenerator with a TagCache keyed by file
// hash. Cache write failures are logged and do not fail the request.
type CachedGenerator struct {
	inner ports.TagGenerator
	cache ports.TagCache
}

func NewCachedGenerator(inner ports.TagGenerator, cache ports.TagCache) *CachedGenerator {
	return &CachedGenerator{inner: inner, cache: cache}
}

func (g *CachedGenerator) Generate(ctx context.Context, path string) ([]string, error) {
	hash, err := usecase.HashFile(path)
	if err != nil {
		return nil, err
	}

	if tags, ok := g.cache.Get(hash); ok {
		slog.Debug("tag_cache_hit", "hash", hash, "count", len(tags))
		return tags, nil
	}

	tags, err := g.inner.Generate(ctx, path)
	if err != nil {
		return nil, err
	}

	if len(tags) > 0 {
		if err := g.cache.Put(hash, tags); err != nil {
			slog.Warn("tag_cache_put_failed", "hash", hash, "error", err)
		}
	}
	return tags, nil
}
