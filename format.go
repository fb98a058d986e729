package sbtable

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// FooterLen is the exact length of the footer at the end of every table file.
const FooterLen = 48

// Each block body is followed by a compression tag byte and a CRC-32C
// checksum covering body and tag.
const blockTrailerLen = 5

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// BlockHandle locates a raw block within a table file. Size counts the
// block body only, excluding the trailer.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

func (h BlockHandle) appendTo(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, h.Offset)
	return binary.AppendUvarint(dst, h.Size)
}

func decodeBlockHandle(b []byte) (BlockHandle, int) {
	off, n := decodeUvarint(b)
	if n == 0 {
		return BlockHandle{}, 0
	}
	sz, m := decodeUvarint(b[n:])
	if m == 0 {
		return BlockHandle{}, 0
	}
	return BlockHandle{Offset: off, Size: sz}, n + m
}

// --------------------------------------------------------------------

type footer struct {
	metaindex BlockHandle
	index     BlockHandle
}

func (f footer) appendTo(dst []byte) []byte {
	base := len(dst)
	dst = f.metaindex.appendTo(dst)
	dst = f.index.appendTo(dst)
	for len(dst)-base < FooterLen-len(magic) {
		dst = append(dst, 0)
	}
	return append(dst, magic...)
}

func decodeFooter(b []byte) (footer, error) {
	if len(b) != FooterLen || !bytes.Equal(b[FooterLen-len(magic):], magic) {
		return footer{}, ErrBadFooter
	}

	var f footer
	var n, m int
	if f.metaindex, n = decodeBlockHandle(b); n == 0 {
		return footer{}, ErrBadFooter
	}
	if f.index, m = decodeBlockHandle(b[n:]); m == 0 {
		return footer{}, ErrBadFooter
	}
	return f, nil
}

// --------------------------------------------------------------------

// readBlock fetches the framed block at h, verifies its trailer and
// returns the decompressed body.
func readBlock(r io.ReaderAt, h BlockHandle, minCap int) ([]byte, error) {
	raw := fetchBuffer(int(h.Size)+blockTrailerLen, minCap)
	if _, err := r.ReadAt(raw, int64(h.Offset)); err != nil {
		releaseBuffer(raw)
		return nil, errors.Wrapf(err, "sbtable: failed to read block at offset %d", h.Offset)
	}

	if crc := decodeFixed32(raw[h.Size+1:]); crc != crc32.Checksum(raw[:h.Size+1], castagnoli) {
		releaseBuffer(raw)
		return nil, ErrCorruptBlock
	}

	switch raw[h.Size] {
	case blockNoCompression:
		return raw[:h.Size], nil
	case blockSnappyCompression:
		defer releaseBuffer(raw)

		sz, err := snappy.DecodedLen(raw[:h.Size])
		if err != nil {
			return nil, ErrCorruptBlock
		}
		plain, err := snappy.Decode(make([]byte, sz), raw[:h.Size])
		if err != nil {
			return nil, ErrCorruptBlock
		}
		return plain, nil
	default:
		return nil, ErrCorruptBlock
	}
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz, minCap int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	if minCap < sz {
		minCap = sz
	}
	return make([]byte, sz, minCap)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
