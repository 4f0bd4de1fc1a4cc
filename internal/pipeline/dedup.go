package pipeline

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RecentPaths is the in-process first-line dedup. It suppresses re-queues of
// paths handled moments ago (watcher double-fires, overlapping crawl) before
// the database uniqueness check runs.
type RecentPaths struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewRecentPaths(maxKeys int, ttl time.Duration) *RecentPaths {
	c, _ := lru.New[string, time.Time](maxKeys)
	return &RecentPaths{
		cache: c,
		ttl:   ttl,
	}
}

// Seen reports whether path was marked within the TTL, marking it either way.
func (d *RecentPaths) Seen(path string) bool {
	if addedAt, ok := d.cache.Get(path); ok {
		if time.Since(addedAt) < d.ttl {
			return true
		}
	}
	d.cache.Add(path, time.Now())
	return false
}

// Forget drops a path so a later attempt is not suppressed, used when
// processing fails before the artifact is committed.
func (d *RecentPaths) Forget(path string) {
	d.cache.Remove(path)
}
