package regions

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/leosaffin/storm-assess/internal/cache"
	"github.com/leosaffin/storm-assess/internal/metrics"
	"github.com/leosaffin/storm-assess/internal/storm"
)

// Classifier answers region-membership queries for catalogued storms,
// memoising results keyed by storm ID. Classification is pure geometry, so
// cached answers stay valid for the life of a catalogue entry.
type Classifier struct {
	outline orb.MultiPolygon
	cache   cache.Cache
	ttl     time.Duration
}

// NewClassifier builds a Classifier over the given Europe outline. cache
// may be nil to disable memoisation.
func NewClassifier(outline orb.MultiPolygon, c cache.Cache, ttl time.Duration) *Classifier {
	return &Classifier{outline: outline, cache: c, ttl: ttl}
}

func (c *Classifier) lookup(key string) (bool, bool) {
	if c.cache == nil {
		return false, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		metrics.RegionCache.WithLabelValues("miss").Inc()
		return false, false
	}
	b, ok := v.(bool)
	if !ok {
		metrics.RegionCache.WithLabelValues("miss").Inc()
		return false, false
	}
	metrics.RegionCache.WithLabelValues("hit").Inc()
	return b, true
}

func (c *Classifier) store(key string, v bool) {
	if c.cache != nil {
		c.cache.Set(key, v, c.ttl)
	}
}

// StormInBasin is the memoised form of StormInBasin. id must uniquely
// identify the storm (the catalogue UUID).
func (c *Classifier) StormInBasin(id string, s *storm.Storm, basin string) (bool, error) {
	key := fmt.Sprintf("region:basin:%s:%s", basin, id)
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	v, err := StormInBasin(s, basin)
	if err != nil {
		return false, err
	}
	c.store(key, v)
	return v, nil
}

// HitsEurope is the memoised form of HitsEurope.
func (c *Classifier) HitsEurope(id string, s *storm.Storm) bool {
	key := "region:europe:" + id
	if v, ok := c.lookup(key); ok {
		return v
	}
	v := HitsEurope(s, c.outline)
	c.store(key, v)
	return v
}
