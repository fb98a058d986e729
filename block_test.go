package sbtable

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("blockCursor", func() {
	var subject *blockCursor

	// 30 keys, restart interval 4
	seed := func(interval int) *block {
		bw := blockWriter{restartInterval: interval}
		for i := 0; i < 30; i++ {
			bw.append([]byte(fmt.Sprintf("key%03d", i*2)), []byte(fmt.Sprintf("val%03d", i*2)))
		}
		b, err := newBlock(bw.finish())
		Expect(err).NotTo(HaveOccurred())
		return b
	}

	BeforeEach(func() {
		subject = newBlockCursor(seed(4))
	})

	It("should position on first", func() {
		Expect(subject.First()).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key000"))
		Expect(string(subject.Value())).To(Equal("val000"))
		Expect(subject.Valid()).To(BeTrue())
	})

	It("should position on last", func() {
		Expect(subject.Last()).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key058"))
		Expect(string(subject.Value())).To(Equal("val058"))
	})

	It("should iterate in order", func() {
		n := 0
		for ok := subject.First(); ok; ok = subject.Next() {
			Expect(string(subject.Key())).To(Equal(fmt.Sprintf("key%03d", n*2)))
			n++
		}
		Expect(n).To(Equal(30))
		Expect(subject.Err()).NotTo(HaveOccurred())
		Expect(subject.Valid()).To(BeFalse())
		Expect(subject.Next()).To(BeFalse())
	})

	It("should seek to exact keys", func() {
		Expect(subject.Seek([]byte("key024"))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key024"))

		// restart points and entries in between
		Expect(subject.Seek([]byte("key000"))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key000"))
		Expect(subject.Seek([]byte("key058"))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key058"))
	})

	It("should seek to the next entry for missing keys", func() {
		Expect(subject.Seek([]byte("key023"))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key024"))

		Expect(subject.Seek([]byte(""))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("key000"))

		Expect(subject.Seek([]byte("key059"))).To(BeFalse())
		Expect(subject.Valid()).To(BeFalse())
		Expect(subject.Err()).NotTo(HaveOccurred())
	})

	It("should handle single-restart blocks", func() {
		cur := newBlockCursor(seed(100))
		Expect(cur.Seek([]byte("key031"))).To(BeTrue())
		Expect(string(cur.Key())).To(Equal("key032"))
		Expect(cur.Last()).To(BeTrue())
		Expect(string(cur.Key())).To(Equal("key058"))
	})

	It("should stay failed on corrupt entries", func() {
		bw := blockWriter{restartInterval: 4}
		bw.append([]byte("key1"), []byte("val1"))
		bw.append([]byte("key2"), []byte("val2"))
		body := bw.finish()
		body[2] = 0xff // mangle the first entry's value length

		b, err := newBlock(body)
		Expect(err).NotTo(HaveOccurred())

		cur := newBlockCursor(b)
		Expect(cur.First()).To(BeFalse())
		Expect(cur.Err()).To(MatchError(ErrCorruptBlock))
		Expect(cur.Seek([]byte("key1"))).To(BeFalse())
		Expect(cur.Err()).To(MatchError(ErrCorruptBlock))
	})
})

var _ = Describe("newBlock", func() {
	It("should reject undersized bodies", func() {
		_, err := newBlock([]byte{0, 0, 0})
		Expect(err).To(MatchError(ErrCorruptBlock))
	})

	It("should reject implausible restart counts", func() {
		body := appendFixed32(nil, 0)
		body = appendFixed32(body, 1<<30)
		_, err := newBlock(body)
		Expect(err).To(MatchError(ErrCorruptBlock))
	})

	It("should reject non-monotonic restart offsets", func() {
		bw := blockWriter{restartInterval: 1}
		bw.append([]byte("a"), []byte("1"))
		bw.append([]byte("b"), []byte("2"))
		body := bw.finish()

		// point the first restart past the restart array
		n := len(body)
		copy(body[n-12:n-8], []byte{9, 9, 9, 9})
		_, err := newBlock(body)
		Expect(err).To(MatchError(ErrCorruptBlock))
	})
})
