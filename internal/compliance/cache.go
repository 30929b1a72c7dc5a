package compliance

import (
	"fmt"
	"hash/fnv"
	"sync"

	"AdvisoryDispatch/internal/domain"
)

// verdictCache memoizes verdicts by a fingerprint of advisor id plus a prefix
// of the sanitized content. A hit returns the stored verdict unchanged and
// skips the semantic evaluation call entirely.
type verdictCache struct {
	mu        sync.RWMutex
	entries   map[string]domain.ComplianceVerdict
	prefixLen int
}

func newVerdictCache(prefixLen int) *verdictCache {
	if prefixLen <= 0 {
		prefixLen = 120
	}
	return &verdictCache{
		entries:   map[string]domain.ComplianceVerdict{},
		prefixLen: prefixLen,
	}
}

func (c *verdictCache) fingerprint(advisorID, text string) string {
	runes := []rune(text)
	if len(runes) > c.prefixLen {
		runes = runes[:c.prefixLen]
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(advisorID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(string(runes)))
	return fmt.Sprintf("%016x", h.Sum64())
}

func (c *verdictCache) get(key string) (domain.ComplianceVerdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *verdictCache) set(key string, v domain.ComplianceVerdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}
