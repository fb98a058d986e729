package sbtable

// Cursor is a forward ordered iterator over key/value entries.
type Cursor interface {
	// First positions the cursor at the first entry.
	First() bool
	// Last positions the cursor at the last entry.
	Last() bool
	// Seek positions the cursor at the first entry with a key >= key.
	Seek(key []byte) bool
	// Next advances the cursor to the next entry.
	Next() bool
	// Key returns the key of the current entry. The returned slice is
	// only valid until the next cursor move.
	Key() []byte
	// Value returns the value of the current entry. The returned slice
	// is only valid until the next cursor move.
	Value() []byte
	// Valid reports whether the cursor is positioned at an entry.
	Valid() bool
	// Err exposes cursor errors, if any. A cursor with an error stays
	// failed until released.
	Err() error
	// Release releases the cursor and the resources it pins. The cursor
	// must not be used after this method is called.
	Release()
}

// --------------------------------------------------------------------

// tableCursor is a two-level cursor: a cursor over the index block
// drives a cursor over the referenced data blocks.
type tableCursor struct {
	t     *Table
	index *blockCursor
	data  *blockCursor
	err   error
}

func (c *tableCursor) First() bool {
	if c.err != nil || !c.ensureIndex() {
		return false
	}
	if !c.index.First() {
		return c.indexExhausted()
	}
	if !c.loadData() {
		return false
	}
	if c.data.First() {
		return true
	}
	return c.skipForward()
}

func (c *tableCursor) Last() bool {
	if c.err != nil || !c.ensureIndex() {
		return false
	}
	if !c.index.Last() {
		return c.indexExhausted()
	}
	if !c.loadData() {
		return false
	}
	if c.data.Last() {
		return true
	}
	if err := c.data.Err(); err != nil {
		return c.fail(err)
	}
	c.data = nil
	return false
}

func (c *tableCursor) Seek(key []byte) bool {
	if c.err != nil || !c.ensureIndex() {
		return false
	}
	if !c.index.Seek(key) {
		return c.indexExhausted()
	}

	h, n := decodeBlockHandle(c.index.Value())
	if n == 0 {
		return c.fail(ErrCorruptIndex)
	}
	if !c.t.keyMayMatch(h, key) {
		// the filter rules the key out, leave the cursor unpositioned
		c.data = nil
		return false
	}

	b, err := c.t.loadBlock(h)
	if err != nil {
		return c.fail(err)
	}
	c.data = newBlockCursor(b)
	if c.data.Seek(key) {
		return true
	}
	return c.skipForward()
}

func (c *tableCursor) Next() bool {
	if c.err != nil || c.data == nil {
		return false
	}
	if c.data.Next() {
		return true
	}
	return c.skipForward()
}

func (c *tableCursor) Key() []byte {
	if c.data == nil {
		return nil
	}
	return c.data.Key()
}

func (c *tableCursor) Value() []byte {
	if c.data == nil {
		return nil
	}
	return c.data.Value()
}

func (c *tableCursor) Valid() bool {
	return c.err == nil && c.data != nil && c.data.Valid()
}

func (c *tableCursor) Err() error { return c.err }

func (c *tableCursor) Release() {
	if c.t != nil {
		c.t.decRef()
		c.t = nil
	}
	c.index = nil
	c.data = nil
	c.err = errReleased
}

// --------------------------------------------------------------------

// ensureIndex faults in the index block on the first positioning call.
// Index corruption surfaces here rather than at open.
func (c *tableCursor) ensureIndex() bool {
	if c.index != nil {
		return true
	}
	b, err := c.t.loadBlock(c.t.index)
	if err != nil {
		return c.fail(err)
	}
	c.index = newBlockCursor(b)
	return true
}

// skipForward advances the index until a non-empty data block is found.
func (c *tableCursor) skipForward() bool {
	for {
		if c.data != nil {
			if err := c.data.Err(); err != nil {
				return c.fail(err)
			}
		}
		if !c.index.Next() {
			return c.indexExhausted()
		}
		if !c.loadData() {
			return false
		}
		if c.data.First() {
			return true
		}
	}
}

// loadData replaces the data cursor with one over the block referenced
// by the current index entry.
func (c *tableCursor) loadData() bool {
	h, n := decodeBlockHandle(c.index.Value())
	if n == 0 {
		return c.fail(ErrCorruptIndex)
	}

	b, err := c.t.loadBlock(h)
	if err != nil {
		return c.fail(err)
	}
	c.data = newBlockCursor(b)
	return true
}

func (c *tableCursor) fail(err error) bool {
	c.err = err
	c.data = nil
	return false
}

func (c *tableCursor) indexExhausted() bool {
	if err := c.index.Err(); err != nil {
		return c.fail(err)
	}
	c.data = nil
	return false
}
