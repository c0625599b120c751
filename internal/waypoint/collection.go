package waypoint

import "time"

// Collection is the merged set of every waypoint fetched in one browsing
// context. It only grows; Reset empties it. It is not safe for concurrent
// use, the owning view serializes access.
type Collection struct {
	order []string
	items map[string]Record
}

func NewCollection() *Collection {
	return &Collection{items: map[string]Record{}}
}

// Merge upserts records by identity, last write wins. It returns how many
// identities were new.
func (c *Collection) Merge(records ...Record) int {
	added := 0
	for _, rec := range records {
		if rec.Identity == "" {
			rec.Identity = Identity(rec)
		}
		if _, ok := c.items[rec.Identity]; !ok {
			c.order = append(c.order, rec.Identity)
			added++
		}
		c.items[rec.Identity] = rec
	}
	return added
}

// MergeRaw normalizes a fetched page and merges it.
func (c *Collection) MergeRaw(raws []Raw, fetchedAt time.Time) int {
	return c.Merge(NormalizeAll(raws, fetchedAt)...)
}

func (c *Collection) Get(identity string) (Record, bool) {
	rec, ok := c.items[identity]
	return rec, ok
}

// Update applies fn to the stored record in place. It reports false when the
// identity is unknown. fn must not change the identity.
func (c *Collection) Update(identity string, fn func(*Record)) bool {
	rec, ok := c.items[identity]
	if !ok {
		return false
	}
	fn(&rec)
	rec.Identity = identity
	c.items[identity] = rec
	return true
}

func (c *Collection) Len() int {
	return len(c.order)
}

// Records returns the records in order of first appearance.
func (c *Collection) Records() []Record {
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c *Collection) Reset() {
	c.order = nil
	c.items = map[string]Record{}
}
