package store

// Cursor tracks position in a zero-based paginated list. Once hasMore is
// false it never becomes true again for this cursor's lifetime; switching
// the underlying query requires a fresh cursor, not a mutation.
type Cursor struct {
	page    int
	hasMore bool
}

// NewCursor returns a cursor at page 0 with more assumed available.
func NewCursor() Cursor {
	return Cursor{hasMore: true}
}

// Page returns the next page to fetch.
func (c *Cursor) Page() int {
	return c.page
}

// HasMore reports whether another page may exist.
func (c *Cursor) HasMore() bool {
	return c.hasMore
}

// Advance records a fetched page. hasNext comes from the server; a cursor
// that has already run out stays exhausted regardless.
func (c *Cursor) Advance(hasNext bool) {
	c.page++
	c.hasMore = c.hasMore && hasNext
}

// Exhaust marks the cursor as having no further pages.
func (c *Cursor) Exhaust() {
	c.hasMore = false
}
