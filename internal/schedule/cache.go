package schedule

import (
	"sync"
)

// Cache holds the process-wide schedule state: the current and pre-generated
// next item per agent, plus the full day plan when one exists. A single
// coarse mutex serializes every mutation; agents are independent but the
// single-writer-at-a-time guarantee is what the monitor loop and the
// conversation-triggered overrides rely on.
type Cache struct {
	mu      sync.Mutex
	current map[string]Item
	next    map[string]Item
	days    map[string]DaySchedule
}

// NewCache creates an empty schedule cache.
func NewCache() *Cache {
	return &Cache{
		current: make(map[string]Item),
		next:    make(map[string]Item),
		days:    make(map[string]DaySchedule),
	}
}

// Current returns the agent's current item, if set.
func (c *Cache) Current(agentID string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.current[agentID]
	return it, ok
}

// SetCurrent replaces the agent's current item. Last write wins; a
// conversation-triggered override racing the monitor loop simply replaces
// the entry and the next tick works from the new end time.
func (c *Cache) SetCurrent(agentID string, it Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current[agentID] = it
}

// ClearCurrent removes the agent's current item.
func (c *Cache) ClearCurrent(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.current, agentID)
}

// Next returns the agent's pre-generated next item, if set.
func (c *Cache) Next(agentID string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.next[agentID]
	return it, ok
}

// SetNext caches a pre-generated next item for the agent.
func (c *Cache) SetNext(agentID string, it Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next[agentID] = it
}

// ClearNext removes the agent's cached next item.
func (c *Cache) ClearNext(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.next, agentID)
}

// Promote atomically moves the cached next item into the current slot and
// clears the next slot. It returns the expired item that was current and
// the promoted item. promoted is false when no next item was cached, in
// which case the current slot is simply cleared and the agent reads as
// unavailable until regeneration.
func (c *Cache) Promote(agentID string) (expired Item, hadCurrent bool, next Item, promoted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired, hadCurrent = c.current[agentID]
	next, promoted = c.next[agentID]
	if promoted {
		c.current[agentID] = next
		delete(c.next, agentID)
	} else {
		delete(c.current, agentID)
	}
	return expired, hadCurrent, next, promoted
}

// Day returns the agent's cached full-day plan, if set.
func (c *Cache) Day(agentID string) (DaySchedule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.days[agentID]
	return d, ok
}

// SetDay replaces the agent's full-day plan.
func (c *Cache) SetDay(agentID string, d DaySchedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[agentID] = d
}

// AgentIDs returns every agent with any cached state. Order is unspecified.
func (c *Cache) AgentIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(c.current))
	for id := range c.current {
		seen[id] = struct{}{}
	}
	for id := range c.next {
		seen[id] = struct{}{}
	}
	for id := range c.days {
		seen[id] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}
