package sbtable

import (
	"bytes"

	"golang.org/x/sync/errgroup"
)

// NewMergingCursor combines multiple cursors into a single sorted
// stream. Positioning operations fan out to all children concurrently;
// entries with equal keys across children are surfaced from the child
// with the lowest position in cursors first. Last positions every child
// at its last entry and surfaces the smallest of those keys, which is not
// the last entry of the merged stream when the children's last keys
// differ.
func NewMergingCursor(cursors ...Cursor) Cursor {
	return &mergingCursor{children: cursors, cur: -1}
}

type mergingCursor struct {
	children []Cursor
	cur      int
	err      error
}

func (m *mergingCursor) First() bool { return m.fanOut(Cursor.First) }
func (m *mergingCursor) Last() bool  { return m.fanOut(Cursor.Last) }

func (m *mergingCursor) Seek(key []byte) bool {
	return m.fanOut(func(c Cursor) bool { return c.Seek(key) })
}

func (m *mergingCursor) Next() bool {
	if m.err != nil || m.cur < 0 {
		return false
	}
	m.children[m.cur].Next()
	return m.selectChild()
}

func (m *mergingCursor) Key() []byte {
	if m.cur < 0 {
		return nil
	}
	return m.children[m.cur].Key()
}

func (m *mergingCursor) Value() []byte {
	if m.cur < 0 {
		return nil
	}
	return m.children[m.cur].Value()
}

func (m *mergingCursor) Valid() bool { return m.err == nil && m.cur >= 0 }
func (m *mergingCursor) Err() error  { return m.err }

func (m *mergingCursor) Release() {
	for _, child := range m.children {
		child.Release()
	}
	m.children = nil
	m.cur = -1
	m.err = errReleased
}

// --------------------------------------------------------------------

func (m *mergingCursor) fanOut(op func(Cursor) bool) bool {
	if m.err != nil {
		return false
	}

	g := new(errgroup.Group)
	for _, child := range m.children {
		child := child
		g.Go(func() error {
			op(child)
			return nil
		})
	}
	_ = g.Wait()

	return m.selectChild()
}

// selectChild picks the child with the smallest current key, breaking
// ties in favour of the lowest child index. Child failures surface in
// child order and stick.
func (m *mergingCursor) selectChild() bool {
	m.cur = -1
	for i, child := range m.children {
		if err := child.Err(); err != nil {
			m.cur = -1
			m.err = err
			return false
		}
		if !child.Valid() {
			continue
		}
		if m.cur < 0 || bytes.Compare(child.Key(), m.children[m.cur].Key()) < 0 {
			m.cur = i
		}
	}
	return m.cur >= 0
}
