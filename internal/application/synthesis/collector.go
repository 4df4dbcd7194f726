package synthesis

import (
	"context"
	"sync"

	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// linkCollector buffers duplicate links in memory during deduplication so the
// whole batch can be written in one transaction at the end.  It satisfies the
// duplicate link repository contract the deduplicator expects.
type linkCollector struct {
	mu    sync.Mutex
	byDup map[common.ID]*response.DuplicateLink
	order []*response.DuplicateLink
}

func newLinkCollector() *linkCollector {
	return &linkCollector{byDup: make(map[common.ID]*response.DuplicateLink)}
}

func (c *linkCollector) Create(_ context.Context, link *response.DuplicateLink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byDup[link.DuplicateID]; ok {
		return nil
	}
	c.byDup[link.DuplicateID] = link
	c.order = append(c.order, link)
	return nil
}

func (c *linkCollector) GetByDuplicateID(_ context.Context, id common.ID) (*response.DuplicateLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link, ok := c.byDup[id]
	if !ok {
		return nil, errors.NotFound("no duplicate link collected")
	}
	return link, nil
}

func (c *linkCollector) ListByCanonicalID(_ context.Context, canonicalID common.ID) ([]*response.DuplicateLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*response.DuplicateLink
	for _, link := range c.order {
		if link.CanonicalID == canonicalID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (c *linkCollector) ListByBatch(_ context.Context, batchID common.BatchID) ([]*response.DuplicateLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*response.DuplicateLink
	for _, link := range c.order {
		if link.BatchID == batchID {
			out = append(out, link)
		}
	}
	return out, nil
}

// Links returns the collected links in recording order.
func (c *linkCollector) Links() []*response.DuplicateLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*response.DuplicateLink, len(c.order))
	copy(out, c.order)
	return out
}

// batchResolver resolves finding references against the current batch's
// in-memory findings, before anything is persisted.
type batchResolver []*finding.Finding

func (br batchResolver) GetByIDs(_ context.Context, ids []common.ID) ([]*finding.Finding, error) {
	byID := make(map[common.ID]*finding.Finding, len(br))
	for _, f := range br {
		byID[f.ID] = f
	}
	out := make([]*finding.Finding, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}
