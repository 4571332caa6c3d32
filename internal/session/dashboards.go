package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"

	"strava-activity-mapper/internal/metrics"
)

const (
	megabyte = 1024 * 1024

	// freecache refuses entries larger than 1/1024 of its size; keep headroom
	// for the key and entry header
	chunkHeadroom = 512

	headerLen    = 16
	loadAttempts = 2
)

// DashboardCache keeps one encoded dashboard per session. Values larger than
// a single cache entry allows are split into numbered chunks behind a small
// header entry. Every save writes its chunks under a fresh generation and
// only then swaps the header, so a reader never mixes two saves.
type DashboardCache struct {
	cache     *freecache.Cache
	chunkSize int
	ttl       time.Duration
	gen       atomic.Uint64
	now       func() time.Time
}

// NewDashboardCache creates a cache of sizeMB megabytes whose entries expire
// after ttl
func NewDashboardCache(sizeMB int, ttl time.Duration) *DashboardCache {
	if sizeMB < 1 {
		sizeMB = 1
	}
	size := sizeMB * megabyte
	c := &DashboardCache{
		chunkSize: size/1024 - chunkHeadroom,
		ttl:       ttl,
		now:       time.Now,
	}
	c.cache = freecache.NewCacheCustomTimer(size, cacheClock{c})
	return c
}

// cacheClock lets freecache expire entries on the same clock as sessions
type cacheClock struct {
	c *DashboardCache
}

func (t cacheClock) Now() uint32 {
	return uint32(t.c.now().Unix())
}

type header struct {
	chunks int
	size   int
	gen    uint64
}

func (h header) encode() []byte {
	buf := make([]byte, headerLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.chunks))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.size))
	binary.BigEndian.PutUint64(buf[8:16], h.gen)
	return buf
}

func decodeHeader(buf []byte) (header, bool) {
	if len(buf) != headerLen {
		return header{}, false
	}
	return header{
		chunks: int(binary.BigEndian.Uint32(buf[0:4])),
		size:   int(binary.BigEndian.Uint32(buf[4:8])),
		gen:    binary.BigEndian.Uint64(buf[8:16]),
	}, true
}

// Save encodes v and stores it under the session ID
func (c *DashboardCache) Save(sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}

	expire := c.expireSeconds()
	h := header{
		chunks: (len(data) + c.chunkSize - 1) / c.chunkSize,
		size:   len(data),
		gen:    c.gen.Add(1),
	}
	for i := 0; i < h.chunks; i++ {
		end := min((i+1)*c.chunkSize, len(data))
		if err := c.cache.Set(chunkKey(sessionID, h.gen, i), data[i*c.chunkSize:end], expire); err != nil {
			return fmt.Errorf("failed to cache dashboard chunk %d: %w", i, err)
		}
	}

	prev, hadPrev := c.header(sessionID)
	if err := c.cache.Set(headerKey(sessionID), h.encode(), expire); err != nil {
		return fmt.Errorf("failed to cache dashboard: %w", err)
	}
	if hadPrev && prev.gen != h.gen {
		c.deleteChunks(sessionID, prev)
	}
	return nil
}

// Load decodes the dashboard stored under the session ID into dst. It
// reports false when nothing complete is cached.
func (c *DashboardCache) Load(sessionID string, dst any) (bool, error) {
	for attempt := 0; attempt < loadAttempts; attempt++ {
		raw, err := c.cache.Get(headerKey(sessionID))
		if errors.Is(err, freecache.ErrNotFound) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("failed to read dashboard: %w", err)
		}
		h, ok := decodeHeader(raw)
		if !ok {
			return false, fmt.Errorf("corrupt dashboard header for %s", sessionID)
		}

		data, complete, err := c.readChunks(sessionID, h)
		if err != nil {
			return false, err
		}
		if !complete {
			// replaced by a concurrent save, or a chunk was evicted
			continue
		}

		if err := json.Unmarshal(data, dst); err != nil {
			return false, fmt.Errorf("failed to decode dashboard: %w", err)
		}
		metrics.DashboardCacheTotal.WithLabelValues(metrics.ResultHit).Inc()
		return true, nil
	}

	metrics.DashboardCacheTotal.WithLabelValues(metrics.ResultMiss).Inc()
	return false, nil
}

func (c *DashboardCache) readChunks(sessionID string, h header) ([]byte, bool, error) {
	data := make([]byte, 0, h.size)
	for i := 0; i < h.chunks; i++ {
		part, err := c.cache.Get(chunkKey(sessionID, h.gen, i))
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read dashboard chunk %d: %w", i, err)
		}
		data = append(data, part...)
	}
	return data, true, nil
}

// Touch pushes the expiry of a session's dashboard out to a full TTL from
// now. A dashboard that is not cached is left alone.
func (c *DashboardCache) Touch(sessionID string) {
	h, ok := c.header(sessionID)
	if !ok {
		return
	}
	expire := c.expireSeconds()
	if err := c.cache.Touch(headerKey(sessionID), expire); err != nil {
		return
	}
	for i := 0; i < h.chunks; i++ {
		_ = c.cache.Touch(chunkKey(sessionID, h.gen, i), expire)
	}
}

// Delete drops the dashboard of a session
func (c *DashboardCache) Delete(sessionID string) {
	h, ok := c.header(sessionID)
	c.cache.Del(headerKey(sessionID))
	if ok {
		c.deleteChunks(sessionID, h)
	}
}

// EntryCount returns the number of live cache entries, chunks included
func (c *DashboardCache) EntryCount() int64 {
	return c.cache.EntryCount()
}

func (c *DashboardCache) header(sessionID string) (header, bool) {
	raw, err := c.cache.Get(headerKey(sessionID))
	if err != nil {
		return header{}, false
	}
	return decodeHeader(raw)
}

func (c *DashboardCache) deleteChunks(sessionID string, h header) {
	for i := 0; i < h.chunks; i++ {
		c.cache.Del(chunkKey(sessionID, h.gen, i))
	}
}

func (c *DashboardCache) expireSeconds() int {
	return int(c.ttl.Seconds())
}

func headerKey(sessionID string) []byte {
	return []byte("dashboard::" + sessionID)
}

func chunkKey(sessionID string, gen uint64, i int) []byte {
	return []byte(fmt.Sprintf("dashboard::%s::%d::%d", sessionID, gen, i))
}
