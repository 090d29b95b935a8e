package transformcache

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/cachekey"
)

// purgeConcurrency bounds the delete fan-out. Deletes have no ordering
// dependency, so they are issued concurrently, unlike the read-path
// candidate scan.
const purgeConcurrency = 16

// purgeScanBatch is the SCAN page size for path-pattern purges.
const purgeScanBatch = 200

// PurgeByTag removes every entry recorded under tag and drops the tag index.
// Returns the number of indexed keys the purge covered.
func (c *Cache) PurgeByTag(ctx context.Context, tag string) (int, error) {
	keys, err := c.store.KeysByTag(ctx, tag)
	if err != nil {
		return 0, fmt.Errorf("resolve tag %q: %w", tag, err)
	}

	deleted := c.deleteConcurrently(ctx, keys)
	if err := c.store.DropTagIndex(ctx, tag); err != nil {
		c.logger.Warn().Err(err).Str("tag", tag).Msg("Failed to drop tag index after purge")
	}

	// Per-key memory invalidation is not tracked; clearing the whole tier
	// is always correct and the tier repopulates on demand.
	c.memory.Clear()

	purgedKeys.WithLabelValues("tag").Add(float64(deleted))
	c.logger.Info().
		Str("tag", tag).
		Int("keys", len(keys)).
		Int64("deleted", deleted).
		Msg("Purged cache entries by tag")
	return len(keys), nil
}

// PurgeByPathPattern removes every entry whose source path matches the
// regular expression pattern. One logical resource may be stored under
// several format-variant keys, so for each match the stored key and every
// common-format variant (plus the "auto" base variant) are deleted; the key
// list is deduplicated before the concurrent delete. Returns the number of
// stored entries that matched.
func (c *Cache) PurgeByPathPattern(ctx context.Context, pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
	}

	variantFormats := append(append([]string{}, c.cfg.FormatPriority...), cachekey.FormatAuto)

	matched := 0
	targets := make(map[string]struct{})
	var cursor uint64
	for {
		items, next, complete, err := c.store.List(ctx, purgeScanBatch, cursor)
		if err != nil {
			return 0, fmt.Errorf("scan entries: %w", err)
		}
		for _, item := range items {
			if !re.MatchString(item.Metadata.SourcePath) {
				continue
			}
			matched++
			targets[item.Key] = struct{}{}
			for _, format := range variantFormats {
				variant, err := cachekey.ReplaceFormat(item.Key, format)
				if err != nil {
					c.logger.Warn().Err(err).Str("key", item.Key).Msg("Skipping unparseable key during purge")
					break
				}
				targets[variant] = struct{}{}
			}
		}
		if complete {
			break
		}
		cursor = next
	}

	keys := make([]string, 0, len(targets))
	for key := range targets {
		keys = append(keys, key)
	}

	deleted := c.deleteConcurrently(ctx, keys)
	c.memory.Clear()

	purgedKeys.WithLabelValues("path").Add(float64(deleted))
	c.logger.Info().
		Str("pattern", pattern).
		Int("matched", matched).
		Int("candidate_keys", len(keys)).
		Int64("deleted", deleted).
		Msg("Purged cache entries by path pattern")
	return matched, nil
}

// deleteConcurrently issues all deletes in parallel and returns how many
// succeeded. Individual delete failures are logged, not fatal: a failed
// delete leaves an entry that will still expire by TTL.
func (c *Cache) deleteConcurrently(ctx context.Context, keys []string) int64 {
	var deleted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := c.store.Delete(gctx, key); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("Purge delete failed")
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()

	return deleted.Load()
}
