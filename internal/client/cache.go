package client

import (
	"encoding/binary"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

const defaultCacheBytes = 8 << 20

// QueryCache keeps raw response payloads of reads for a fixed TTL. A nil *QueryCache is a no-op.
type QueryCache struct {
	cache *fastcache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewQueryCache allocates a cache of maxBytes (8MiB when non-positive).
func NewQueryCache(maxBytes int, ttl time.Duration) *QueryCache {
	if maxBytes <= 0 {
		maxBytes = defaultCacheBytes
	}
	return &QueryCache{
		cache: fastcache.New(maxBytes),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the payload stored under key when it has not expired.
func (q *QueryCache) Get(key string) ([]byte, bool) {
	if q == nil {
		return nil, false
	}
	entry, ok := q.cache.HasGet(nil, []byte(key))
	if !ok || len(entry) < 8 {
		return nil, false
	}
	expires := int64(binary.BigEndian.Uint64(entry[:8]))
	if q.now().UnixNano() >= expires {
		q.cache.Del([]byte(key))
		return nil, false
	}
	return entry[8:], true
}

// Set stores value under key. Entries carry their expiry as an 8 byte prefix; fastcache drops
// entries over 64KB, which then simply miss.
func (q *QueryCache) Set(key string, value []byte) {
	if q == nil {
		return
	}
	entry := make([]byte, 8, 8+len(value))
	binary.BigEndian.PutUint64(entry, uint64(q.now().Add(q.ttl).UnixNano()))
	entry = append(entry, value...)
	q.cache.Set([]byte(key), entry)
}

// Reset drops every entry.
func (q *QueryCache) Reset() {
	if q == nil {
		return
	}
	q.cache.Reset()
}
