// Package catalog holds the fixed, ordered list of videos delivered to subscribers.
package catalog

import "strings"

// ContentRef is an opaque reference to a video: a Telegram file_id or an http(s) URL.
type ContentRef string

// IsURL reports whether the reference points at a network resource rather than a file_id.
func (r ContentRef) IsURL() bool {
	s := string(r)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Catalog is immutable after construction.
type Catalog struct {
	refs []ContentRef
}

// New copies refs, dropping blank entries.
func New(refs []string) *Catalog {
	c := &Catalog{refs: make([]ContentRef, 0, len(refs))}
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		c.refs = append(c.refs, ContentRef(r))
	}
	return c
}

func (c *Catalog) Len() int { return len(c.refs) }

func (c *Catalog) Empty() bool { return len(c.refs) == 0 }

// At returns the entry at index i. It panics on an out-of-range index like a slice would.
func (c *Catalog) At(i int) ContentRef { return c.refs[i] }

// Next returns the index following cursor. Past the last entry it wraps to 0 when
// wrap is set; otherwise ok is false. ok is always false for an empty catalog.
func (c *Catalog) Next(cursor int, wrap bool) (next int, ok bool) {
	n := len(c.refs)
	if n == 0 {
		return 0, false
	}
	if cursor < -1 {
		cursor = -1
	}
	next = cursor + 1
	if next < n {
		return next, true
	}
	if !wrap {
		return 0, false
	}
	return next % n, true
}

// Exhausted reports whether a subscriber at cursor has nothing left when wrap is off.
func (c *Catalog) Exhausted(cursor int, wrap bool) bool {
	_, ok := c.Next(cursor, wrap)
	return !ok && !c.Empty()
}
