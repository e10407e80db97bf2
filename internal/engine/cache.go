package engine

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/querylens-io/querylens/pkg/steps"
)

// pipelineCache memoizes compiled pipelines by normalized query text.
// Pipelines are immutable after compilation, so sharing one instance across
// executions is safe.
type pipelineCache struct {
	c *gocache.Cache
}

func newPipelineCache(ttl time.Duration) *pipelineCache {
	return &pipelineCache{c: gocache.New(ttl, 2*ttl)}
}

func cacheKey(query string) string {
	return strconv.FormatUint(xxhash.Sum64String(query), 16)
}

func (pc *pipelineCache) get(query string) (*steps.Pipeline, bool) {
	v, ok := pc.c.Get(cacheKey(query))
	if !ok {
		return nil, false
	}
	p, ok := v.(*steps.Pipeline)
	return p, ok
}

func (pc *pipelineCache) put(query string, p *steps.Pipeline) {
	pc.c.Set(cacheKey(query), p, gocache.DefaultExpiration)
}
