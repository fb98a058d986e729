package sbtable

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("bloomFilter", func() {
	var subject FilterPolicy

	BeforeEach(func() {
		subject = NewBloomFilter(10)
	})

	It("should have a name", func() {
		Expect(subject.Name()).To(Equal("farmhash.bloom"))
	})

	It("should never produce false negatives", func() {
		keys := make([][]byte, 1000)
		for i := range keys {
			keys[i] = []byte(fmt.Sprintf("key%06d", i*3))
		}
		filter := subject.CreateFilter(keys)

		for _, key := range keys {
			Expect(subject.KeyMayMatch(filter, key)).To(BeTrue(), "for %s", key)
		}
	})

	It("should keep false positives rare", func() {
		keys := make([][]byte, 1000)
		for i := range keys {
			keys[i] = []byte(fmt.Sprintf("key%06d", i))
		}
		filter := subject.CreateFilter(keys)

		fp := 0
		for i := 0; i < 10000; i++ {
			if subject.KeyMayMatch(filter, []byte(fmt.Sprintf("other%06d", i))) {
				fp++
			}
		}
		Expect(fp).To(BeNumerically("<", 300))
	})

	It("should handle tiny and empty filters", func() {
		Expect(subject.KeyMayMatch(nil, []byte("key"))).To(BeFalse())
		Expect(subject.KeyMayMatch([]byte{0}, []byte("key"))).To(BeFalse())

		filter := subject.CreateFilter([][]byte{[]byte("key")})
		Expect(subject.KeyMayMatch(filter, []byte("key"))).To(BeTrue())
	})
})

var _ = Describe("filterBlock", func() {
	var reader *filterBlockReader

	key := func(block, i int) []byte {
		return []byte(fmt.Sprintf("b%02d-key%03d", block, i))
	}

	// three data blocks at 0, 4KiB and 8KiB, 100 keys each
	BeforeEach(func() {
		builder := newFilterBlockBuilder(NewBloomFilter(10))
		for b := 0; b < 3; b++ {
			builder.startBlock(uint64(b) * 4096)
			for i := 0; i < 100; i++ {
				builder.addKey(key(b, i))
			}
		}
		reader = newFilterBlockReader(NewBloomFilter(10), builder.finish())
		Expect(reader).NotTo(BeNil())
	})

	It("should match keys of the owning block", func() {
		for b := 0; b < 3; b++ {
			for i := 0; i < 100; i++ {
				Expect(reader.KeyMayMatch(uint64(b)*4096, key(b, i))).To(BeTrue(), "block %d key %d", b, i)
			}
		}
	})

	It("should pass through out-of-range offsets", func() {
		Expect(reader.KeyMayMatch(1<<30, []byte("anything"))).To(BeTrue())
	})

	It("should reject truncated payloads", func() {
		Expect(newFilterBlockReader(NewBloomFilter(10), nil)).To(BeNil())
		Expect(newFilterBlockReader(NewBloomFilter(10), []byte{1, 2, 3})).To(BeNil())
	})
})
