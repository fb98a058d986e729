package sbtable

import farm "github.com/dgryski/go-farm"

// FilterPolicy is a pluggable oracle used to probabilistically skip data
// blocks on negative lookups.
type FilterPolicy interface {
	// Name identifies the policy. Tables store it alongside the filter
	// data; a table read with a different policy is served unfiltered.
	Name() string

	// CreateFilter produces a filter payload matching all given keys.
	CreateFilter(keys [][]byte) []byte

	// KeyMayMatch reports whether the filter payload may contain key.
	// False positives are allowed, false negatives are not.
	KeyMayMatch(filter, key []byte) bool
}

// NewBloomFilter returns a bloom FilterPolicy with the given number of
// bits per key. 10 bits per key yield a false-positive rate of about 1%.
func NewBloomFilter(bitsPerKey int) FilterPolicy {
	if bitsPerKey < 1 {
		bitsPerKey = 1
	}
	return bloomFilter(bitsPerKey)
}

type bloomFilter int

func (p bloomFilter) Name() string { return "farmhash.bloom" }

func (p bloomFilter) CreateFilter(keys [][]byte) []byte {
	// k ~= bitsPerKey * ln(2)
	k := uint8(float64(p) * 0.69)
	if k < 1 {
		k = 1
	} else if k > 30 {
		k = 30
	}

	nBits := len(keys) * int(p)
	if nBits < 64 {
		nBits = 64
	}
	nBytes := (nBits + 7) / 8
	nBits = nBytes * 8

	filter := make([]byte, nBytes+1)
	for _, key := range keys {
		h := farm.Fingerprint64(key)
		delta := h>>33 | h<<31
		for j := uint8(0); j < k; j++ {
			pos := h % uint64(nBits)
			filter[pos/8] |= 1 << (pos % 8)
			h += delta
		}
	}
	filter[nBytes] = k
	return filter
}

func (p bloomFilter) KeyMayMatch(filter, key []byte) bool {
	n := len(filter)
	if n < 2 {
		return false
	}

	k := filter[n-1]
	if k > 30 {
		// reserved for future encodings, treat as a match
		return true
	}

	nBits := uint64(n-1) * 8
	h := farm.Fingerprint64(key)
	delta := h>>33 | h<<31
	for j := uint8(0); j < k; j++ {
		pos := h % nBits
		if filter[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// --------------------------------------------------------------------

// Data-block offsets are truncated to filterBase granularity when
// selecting the responsible filter.
const filterBaseLg = 11

// filterBlockReader answers membership queries for the data block at a
// given file offset.
type filterBlockReader struct {
	policy  FilterPolicy
	data    []byte
	offsets int // start of the offsets array
	num     int
	baseLg  uint
}

func newFilterBlockReader(policy FilterPolicy, data []byte) *filterBlockReader {
	n := len(data)
	if policy == nil || n < 5 {
		return nil
	}

	offsets := int(decodeFixed32(data[n-5:]))
	if offsets > n-5 {
		return nil
	}
	return &filterBlockReader{
		policy:  policy,
		data:    data,
		offsets: offsets,
		num:     (n - 5 - offsets) / 4,
		baseLg:  uint(data[n-1]),
	}
}

func (r *filterBlockReader) KeyMayMatch(blockOffset uint64, key []byte) bool {
	i := int(blockOffset >> r.baseLg)
	if i >= r.num {
		// out of range, treat as a match
		return true
	}

	start := int(decodeFixed32(r.data[r.offsets+4*i:]))
	limit := int(decodeFixed32(r.data[r.offsets+4*i+4:]))
	if start == limit {
		// no keys mapped to this range
		return false
	}
	if start > limit || limit > r.offsets {
		return true
	}
	return r.policy.KeyMayMatch(r.data[start:limit], key)
}

// --------------------------------------------------------------------

// filterBlockBuilder accumulates the keys of the data blocks written so
// far and emits the filter block.
type filterBlockBuilder struct {
	policy  FilterPolicy
	keys    [][]byte
	filters []byte
	offsets []uint32
}

func newFilterBlockBuilder(policy FilterPolicy) *filterBlockBuilder {
	return &filterBlockBuilder{policy: policy}
}

func (b *filterBlockBuilder) startBlock(blockOffset uint64) {
	idx := int(blockOffset >> filterBaseLg)
	for idx > len(b.offsets) {
		b.generate()
	}
}

func (b *filterBlockBuilder) addKey(key []byte) {
	b.keys = append(b.keys, append([]byte(nil), key...))
}

func (b *filterBlockBuilder) finish() []byte {
	if len(b.keys) != 0 {
		b.generate()
	}

	out := b.filters
	arrayStart := uint32(len(out))
	for _, off := range b.offsets {
		out = appendFixed32(out, off)
	}
	out = appendFixed32(out, arrayStart)
	return append(out, filterBaseLg)
}

func (b *filterBlockBuilder) generate() {
	b.offsets = append(b.offsets, uint32(len(b.filters)))
	if len(b.keys) == 0 {
		return
	}
	b.filters = append(b.filters, b.policy.CreateFilter(b.keys)...)
	b.keys = b.keys[:0]
}
