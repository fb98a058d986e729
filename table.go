package sbtable

import (
	"bytes"
	"io"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
)

var fileSeq atomic.Uint64

// Table is an open, immutable sorted table. Tables are shared: the table
// cache holds one reference, every cursor holds another, and the
// underlying file is closed once the last holder releases.
type Table struct {
	id     uint64
	r      io.ReaderAt
	size   int64
	name   string
	closer io.Closer

	index     BlockHandle
	filter    *filterBlockReader
	metaindex BlockHandle

	o   *Options
	ref atomic.Int32
}

// Open opens the named table file, consulting the table cache first.
func Open(name string, o *Options) (*Table, error) {
	o = o.norm()
	return o.TableCache.load(name, func() (*Table, error) {
		f, err := os.Open(name)
		if err != nil {
			o.onReadError(err)
			return nil, err
		}
		stat, err := f.Stat()
		if err != nil {
			_ = f.Close()
			o.onReadError(err)
			return nil, err
		}

		t, err := newTable(f, stat.Size(), o)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		t.name = name
		t.closer = f
		return t, nil
	})
}

// NewTable opens a table over an arbitrary random-access reader. The
// table is not registered with the table cache.
func NewTable(r io.ReaderAt, size int64, o *Options) (*Table, error) {
	return newTable(r, size, o.norm())
}

func newTable(r io.ReaderAt, size int64, o *Options) (*Table, error) {
	if size < FooterLen {
		return nil, ErrBadFooter
	}

	buf := make([]byte, FooterLen)
	if _, err := r.ReadAt(buf, size-FooterLen); err != nil {
		err = errors.Wrap(err, "sbtable: failed to read footer")
		o.onReadError(err)
		return nil, err
	}
	ftr, err := decodeFooter(buf)
	if err != nil {
		return nil, err
	}

	t := &Table{
		id:        fileSeq.Add(1),
		r:         r,
		size:      size,
		index:     ftr.index,
		metaindex: ftr.metaindex,
		o:         o,
	}
	t.ref.Store(1)
	t.readMeta()
	return t, nil
}

// NewCursor returns a cursor over the table. The cursor pins the table
// for its lifetime and must be released. The index block is faulted in
// on the first positioning call. When the table's filter rules out the
// sought key, Seek returns false without positioning the cursor, even if
// the table holds larger keys.
func (t *Table) NewCursor() Cursor {
	t.incRef()
	return &tableCursor{t: t}
}

// Append retrieves the value for a key and appends it to dst.
// It may return an ErrNotFound error.
func (t *Table) Append(dst, key []byte) ([]byte, error) {
	cur := t.NewCursor()
	defer cur.Release()

	if !cur.Seek(key) {
		if err := cur.Err(); err != nil {
			return dst, err
		}
		return dst, ErrNotFound
	}
	if !bytes.Equal(cur.Key(), key) {
		return dst, ErrNotFound
	}
	return append(dst, cur.Value()...), nil
}

// Get is a shortcut for Append(nil, key).
// It may return an ErrNotFound error.
func (t *Table) Get(key []byte) ([]byte, error) {
	return t.Append(nil, key)
}

// --------------------------------------------------------------------

// loadBlock returns the shared block at h, served from the block cache
// or faulted in from the file.
func (t *Table) loadBlock(h BlockHandle) (*block, error) {
	return t.o.BlockCache.load(t.id, h, func() (*block, error) {
		data, err := readBlock(t.r, h, t.o.BufferSize)
		if err != nil {
			t.o.onReadError(err)
			return nil, err
		}
		return newBlock(data)
	})
}

// keyMayMatch consults the filter for the data block at h, if any.
func (t *Table) keyMayMatch(h BlockHandle, key []byte) bool {
	if t.filter == nil {
		return true
	}
	return t.filter.KeyMayMatch(h.Offset, key)
}

// readMeta locates the filter block via the metaindex. A missing entry,
// a policy mismatch or an unreadable filter block leave the table usable
// without a filter.
func (t *Table) readMeta() {
	if t.o.FilterPolicy == nil {
		return
	}

	data, err := readBlock(t.r, t.metaindex, t.o.BufferSize)
	if err != nil {
		t.o.onReadError(err)
		return
	}
	meta, err := newBlock(data)
	if err != nil {
		return
	}

	name := []byte("filter." + t.o.FilterPolicy.Name())
	cur := newBlockCursor(meta)
	if !cur.Seek(name) || !bytes.Equal(cur.Key(), name) {
		return
	}
	h, n := decodeBlockHandle(cur.Value())
	if n == 0 {
		return
	}

	fdata, err := readBlock(t.r, h, t.o.BufferSize)
	if err != nil {
		t.o.onReadError(err)
		return
	}
	t.filter = newFilterBlockReader(t.o.FilterPolicy, fdata)
}

func (t *Table) incRef() {
	t.ref.Add(1)
}

func (t *Table) decRef() {
	if t.ref.Add(-1) == 0 && t.closer != nil {
		_ = t.closer.Close()
	}
}
