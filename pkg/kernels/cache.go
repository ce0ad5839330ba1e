package kernels

import (
	"sync"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

type cacheKey struct {
	gridSize int
	cellsize float64
	params   Params
}

// Cache memoises kernel banks so that invert and predict calls sharing a
// grid geometry reuse the same bank.
type Cache struct {
	mu    sync.Mutex
	banks map[cacheKey]*Bank
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{banks: make(map[cacheKey]*Bank)}
}

// Get returns the bank for (g, padding, p), building it on first use
func (c *Cache) Get(g models.Geometry, padding int, p Params) (*Bank, error) {
	key := cacheKey{gridSize: g.NX * padding, cellsize: g.Cellsize, params: p}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.banks[key]; ok {
		return b, nil
	}
	b, err := NewBank(g, padding, p)
	if err != nil {
		return nil, err
	}
	c.banks[key] = b
	return b, nil
}

// Len reports how many banks are cached
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.banks)
}
