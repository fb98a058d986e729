package sbtable

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BlockSize is the approximate maximum uncompressed size in bytes of
	// each data block: a block is flushed before an entry would push its
	// estimated size past it. An entry larger than BlockSize forms a
	// block of its own.
	// Default: 4KiB.
	BlockSize int

	// BlockRestartInterval is the number of keys between restart points
	// for prefix compression of keys.
	//
	// Default: 16.
	BlockRestartInterval int

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression Compression

	// FilterPolicy, when set, emits a filter block that readers opened
	// with the same policy use to skip data blocks on negative lookups.
	// Default: none.
	FilterPolicy FilterPolicy
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 12
	}
	if oo.BlockRestartInterval < 1 {
		oo.BlockRestartInterval = 16
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}

	return &oo
}

// Writer instances can write a table.
type Writer struct {
	w io.Writer
	o *WriterOptions

	offset uint64
	data   blockWriter
	index  blockWriter
	filter *filterBlockBuilder

	lastKey  []byte
	nEntries int

	snp    []byte // snappy buffer
	tmp    []byte // scratch buffer
	closed bool
}

// NewWriter wraps a writer and returns a Writer. Keys must be appended
// in strictly ascending order.
func NewWriter(w io.Writer, o *WriterOptions) *Writer {
	o = o.norm()

	t := &Writer{
		w:     w,
		o:     o,
		data:  blockWriter{restartInterval: o.BlockRestartInterval},
		index: blockWriter{restartInterval: 1},
		tmp:   make([]byte, 0, 2*binary.MaxVarintLen64),
	}
	if o.FilterPolicy != nil {
		t.filter = newFilterBlockBuilder(o.FilterPolicy)
		t.filter.startBlock(0)
	}
	return t
}

// Append appends an entry to the table.
func (w *Writer) Append(key, value []byte) error {
	if w.closed {
		return errClosed
	}

	if w.nEntries != 0 && bytes.Compare(key, w.lastKey) <= 0 {
		return errors.Errorf("sbtable: attempted an out-of-order append, %q must be > %q", key, w.lastKey)
	}

	if w.data.estimatedSize()+len(key)+len(value) > w.o.BlockSize && !w.data.empty() {
		if err := w.flush(); err != nil {
			return err
		}
	}

	if w.filter != nil {
		w.filter.addKey(key)
	}
	w.data.append(key, value)

	w.lastKey = append(w.lastKey[:0], key...)
	w.nEntries++

	return nil
}

// Close finalises the table. It flushes the last data block, writes the
// filter, metaindex and index blocks and appends the footer.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	if err := w.flush(); err != nil {
		return err
	}

	var filterHandle BlockHandle
	if w.filter != nil {
		var err error
		if filterHandle, err = w.writeRawBlock(w.filter.finish(), NoCompression); err != nil {
			return err
		}
	}

	meta := blockWriter{restartInterval: 1}
	if w.filter != nil {
		w.tmp = filterHandle.appendTo(w.tmp[:0])
		meta.append([]byte("filter."+w.o.FilterPolicy.Name()), w.tmp)
	}
	metaHandle, err := w.writeBlock(&meta)
	if err != nil {
		return err
	}

	indexHandle, err := w.writeBlock(&w.index)
	if err != nil {
		return err
	}

	ftr := footer{metaindex: metaHandle, index: indexHandle}
	if _, err := w.w.Write(ftr.appendTo(w.tmp[:0])); err != nil {
		return errors.Wrap(err, "sbtable: failed to write footer")
	}
	w.closed = true
	return nil
}

// --------------------------------------------------------------------

// flush finalises the current data block, writes it out and records its
// handle in the index.
func (w *Writer) flush() error {
	if w.data.empty() {
		return nil
	}

	h, err := w.writeBlock(&w.data)
	if err != nil {
		return err
	}

	w.tmp = h.appendTo(w.tmp[:0])
	w.index.append(w.lastKey, w.tmp)

	if w.filter != nil {
		w.filter.startBlock(w.offset)
	}
	return nil
}

func (w *Writer) writeBlock(b *blockWriter) (BlockHandle, error) {
	body := b.finish()
	h, err := w.writeRawBlock(body, w.o.Compression)
	b.reset()
	return h, err
}

// writeRawBlock frames and writes a block body, returning its handle.
// Snappy output is only used when it saves more than an eighth of the
// plain size.
func (w *Writer) writeRawBlock(body []byte, compression Compression) (BlockHandle, error) {
	block := body
	tag := byte(blockNoCompression)

	if compression == SnappyCompression {
		w.snp = snappy.Encode(w.snp[:cap(w.snp)], body)
		if len(w.snp) < len(body)-len(body)/8 {
			block = w.snp
			tag = blockSnappyCompression
		}
	}

	h := BlockHandle{Offset: w.offset, Size: uint64(len(block))}
	if err := w.writeRaw(block); err != nil {
		return BlockHandle{}, err
	}

	w.tmp = append(w.tmp[:0], tag)
	crc := crc32.Update(crc32.Checksum(block, castagnoli), castagnoli, w.tmp[:1])
	w.tmp = appendFixed32(w.tmp, crc)
	if err := w.writeRaw(w.tmp[:blockTrailerLen]); err != nil {
		return BlockHandle{}, err
	}
	return h, nil
}

func (w *Writer) writeRaw(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += uint64(n)
	if err != nil {
		return errors.Wrap(err, "sbtable: failed to write block")
	}
	return nil
}

// --------------------------------------------------------------------

// blockWriter accumulates prefix-compressed entries and emits the block
// body including the restart array.
type blockWriter struct {
	restartInterval int

	buf      []byte
	restarts []uint32
	lastKey  []byte
	counter  int
}

func (b *blockWriter) append(key, value []byte) {
	shared := 0
	if b.counter < b.restartInterval && len(b.restarts) != 0 {
		shared = sharedPrefixLen(b.lastKey, key)
	} else {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
		b.counter = 0
	}

	b.buf = binary.AppendUvarint(b.buf, uint64(shared))
	b.buf = binary.AppendUvarint(b.buf, uint64(len(key)-shared))
	b.buf = binary.AppendUvarint(b.buf, uint64(len(value)))
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)

	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
}

func (b *blockWriter) finish() []byte {
	if len(b.restarts) == 0 {
		b.restarts = append(b.restarts, 0)
	}
	for _, off := range b.restarts {
		b.buf = appendFixed32(b.buf, off)
	}
	b.buf = appendFixed32(b.buf, uint32(len(b.restarts)))
	return b.buf
}

func (b *blockWriter) reset() {
	b.buf = b.buf[:0]
	b.restarts = b.restarts[:0]
	b.lastKey = b.lastKey[:0]
	b.counter = 0
}

func (b *blockWriter) empty() bool {
	return len(b.buf) == 0
}

func (b *blockWriter) estimatedSize() int {
	return len(b.buf) + 4*(len(b.restarts)+1)
}
