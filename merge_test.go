package sbtable_test

import (
	"bytes"

	"github.com/bsm/sbtable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MergingCursor", func() {
	var subject sbtable.Cursor

	openTable := func(entries [][2]string) *sbtable.Table {
		buf, err := literalTable(entries, nil)
		Expect(err).NotTo(HaveOccurred())

		table, err := sbtable.NewTable(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
		Expect(err).NotTo(HaveOccurred())
		return table
	}

	BeforeEach(func() {
		ta := openTable([][2]string{{"a", "A"}, {"c", "A"}, {"e", "A"}})
		tb := openTable([][2]string{{"b", "B"}, {"c", "B"}, {"d", "B"}})
		subject = sbtable.NewMergingCursor(ta.NewCursor(), tb.NewCursor())
	})

	AfterEach(func() {
		subject.Release()
	})

	It("should merge in key order", func() {
		expected := [][2]string{
			{"a", "A"}, {"b", "B"}, {"c", "A"}, {"c", "B"}, {"d", "B"}, {"e", "A"},
		}

		Expect(subject.First()).To(BeTrue())
		for i, kv := range expected {
			if i != 0 {
				Expect(subject.Next()).To(BeTrue())
			}
			Expect(string(subject.Key())).To(Equal(kv[0]), "at %d", i)
			Expect(string(subject.Value())).To(Equal(kv[1]), "at %d", i)
		}
		Expect(subject.Next()).To(BeFalse())
		Expect(subject.Err()).NotTo(HaveOccurred())
	})

	It("should prefer earlier children on equal keys", func() {
		Expect(subject.Seek([]byte("c"))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("c"))
		Expect(string(subject.Value())).To(Equal("A"))

		Expect(subject.Next()).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("c"))
		Expect(string(subject.Value())).To(Equal("B"))
	})

	It("should seek", func() {
		Expect(subject.Seek([]byte("cc"))).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("d"))
		Expect(string(subject.Value())).To(Equal("B"))

		Expect(subject.Seek([]byte("f"))).To(BeFalse())
		Expect(subject.Valid()).To(BeFalse())
		Expect(subject.Err()).NotTo(HaveOccurred())
	})

	It("should surface the smallest of the children's last entries", func() {
		Expect(subject.Last()).To(BeTrue())
		Expect(string(subject.Key())).To(Equal("d"))
		Expect(string(subject.Value())).To(Equal("B"))
	})
})
