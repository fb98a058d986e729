package sbtable

import "errors"

var magic = []byte{139, 46, 209, 71, 240, 154, 92, 182}

const (
	blockNoCompression     = 0
	blockSnappyCompression = 1
)

// ErrNotFound is returned by Get/Append when a key cannot be found.
var ErrNotFound = errors.New("sbtable: not found")

// Errors surfaced by tables and cursors.
var (
	ErrBadFooter    = errors.New("sbtable: bad footer")
	ErrCorruptBlock = errors.New("sbtable: corrupt block")
	ErrCorruptIndex = errors.New("sbtable: corrupt index entry")
)

var (
	errClosed   = errors.New("sbtable: is closed")
	errReleased = errors.New("sbtable: cursor was released")
)

// --------------------------------------------------------------------

// Compression is the compression codec
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// Supported compression codecs
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

// --------------------------------------------------------------------

// Options define table read options.
type Options struct {
	// FilterPolicy enables probabilistic skipping of data blocks on
	// negative lookups. Must match the policy the table was written with,
	// otherwise filtering is disabled for the table.
	// Default: none.
	FilterPolicy FilterPolicy

	// BlockCache is the cache instance used for decoded blocks. Caches
	// are expected to be owned per shard and shared between the tables of
	// that shard. If nil, a private cache with BlockCacheSize capacity is
	// created.
	BlockCache *BlockCache

	// BlockCacheSize is the capacity in bytes of the private block cache
	// created when BlockCache is nil.
	// Default: 8MiB.
	BlockCacheSize int64

	// TableCache is the cache of open table handles. If nil, a private
	// cache with TableCacheSize capacity is created.
	TableCache *TableCache

	// TableCacheSize is the maximum number of open tables retained by the
	// private table cache created when TableCache is nil.
	// Default: 500.
	TableCacheSize int

	// BufferSize is the minimum capacity of transient read buffers.
	// Default: 64KiB.
	BufferSize int

	// ReadErrorHandler, when set, is invoked with every read fault before
	// the error is surfaced to the caller.
	ReadErrorHandler func(error)
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.BlockCacheSize < 1 {
		oo.BlockCacheSize = 8 << 20
	}
	if oo.TableCacheSize < 1 {
		oo.TableCacheSize = 500
	}
	if oo.BufferSize < 1 {
		oo.BufferSize = 64 << 10
	}
	if oo.BlockCache == nil {
		oo.BlockCache = NewBlockCache(oo.BlockCacheSize)
	}
	if oo.TableCache == nil {
		oo.TableCache = NewTableCache(oo.TableCacheSize)
	}
	return &oo
}

func (o *Options) onReadError(err error) {
	if o.ReadErrorHandler != nil && err != nil {
		o.ReadErrorHandler(err)
	}
}
