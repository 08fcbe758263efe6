package cache

// ensureCapacity evicts entries until an entry of given size fits, must be called under lock.
func (c *memory) ensureCapacity(size int64) []Event {
	var evicted []Event

	maxEntries := c.config.capacity()
	now := c.config.TimeNow()

	for c.data.Len() > 0 && (c.agg.size+size > c.config.MaxSize || c.data.Len() >= maxEntries) {
		k, e, ok := c.victim()
		if !ok {
			break
		}

		c.remove(k, e)
		c.agg.evictions.Inc()

		evicted = append(evicted, Event{
			Type:      EventEvict,
			Key:       k,
			Timestamp: now,
			Size:      e.Size,
			Reason:    string(c.config.EvictionStrategy),
		})
	}

	return evicted
}

// victim returns next entry to evict, must be called under lock.
func (c *memory) victim() (string, *Entry, bool) {
	if c.config.EvictionStrategy != LFU {
		// Head of access order is least recently used for LRU and oldest written for FIFO.
		return c.data.GetOldest()
	}

	var (
		victimKey string
		victim    *Entry
	)

	// Keys are ordered from least recently used, strict comparison keeps the oldest among equals.
	for _, k := range c.data.Keys() {
		e, found := c.data.Peek(k)
		if !found {
			continue
		}

		if victim == nil || e.AccessCount < victim.AccessCount {
			victimKey, victim = k, e
		}
	}

	return victimKey, victim, victim != nil
}
