package hud

// Cache keeps rendered labels keyed by their text. Once it holds Limit
// entries it starts over, handing every old value to Drop.
type Cache[V any] struct {
	Limit int
	Drop  func(V)
	items map[string]V
}

func (c *Cache[V]) Get(key string, render func() V) V {
	if v, ok := c.items[key]; ok {
		return v
	}
	if c.items == nil || (c.Limit > 0 && len(c.items) >= c.Limit) {
		c.Reset()
	}
	v := render()
	c.items[key] = v
	return v
}

// Reset drops every entry.
func (c *Cache[V]) Reset() {
	if c.Drop != nil {
		for _, v := range c.items {
			c.Drop(v)
		}
	}
	c.items = make(map[string]V)
}

func (c *Cache[V]) Len() int { return len(c.items) }
