package ndjson_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/ndjson"
)

func asStrings(lines [][]byte) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, string(l))
	}
	return out
}

var _ = Describe("Splitter", func() {
	var s *ndjson.Splitter

	BeforeEach(func() {
		s = &ndjson.Splitter{}
	})

	It("returns every complete line in a chunk", func() {
		lines := s.Feed([]byte("{\"a\":1}\n{\"b\":2}\n"))
		Expect(asStrings(lines)).To(Equal([]string{`{"a":1}`, `{"b":2}`}))
		Expect(s.Pending()).To(BeZero())
	})

	It("retains an incomplete trailing segment across feeds", func() {
		Expect(s.Feed([]byte(`{"resp`))).To(BeEmpty())
		Expect(s.Pending()).To(Equal(6))

		lines := s.Feed([]byte("onse\":\"hi\"}\n{\"do"))
		Expect(asStrings(lines)).To(Equal([]string{`{"response":"hi"}`}))

		lines = s.Feed([]byte("ne\":true}\n"))
		Expect(asStrings(lines)).To(Equal([]string{`{"done":true}`}))
	})

	It("drops blank and whitespace-only lines", func() {
		lines := s.Feed([]byte("\n  \n{\"a\":1}\n\t\n"))
		Expect(asStrings(lines)).To(Equal([]string{`{"a":1}`}))
	})

	It("trims carriage returns", func() {
		lines := s.Feed([]byte("{\"a\":1}\r\n"))
		Expect(asStrings(lines)).To(Equal([]string{`{"a":1}`}))
	})

	It("does not alias the fed chunk", func() {
		chunk := []byte("{\"a\":1}\n")
		lines := s.Feed(chunk)
		chunk[2] = 'X'
		Expect(string(lines[0])).To(Equal(`{"a":1}`))
	})

	Describe("line limit", func() {
		It("keeps lines up to the limit", func() {
			s.MaxLineSize = 8
			Expect(s.Feed([]byte(`{"a":12}`))).To(BeEmpty())
			Expect(s.Err()).NotTo(HaveOccurred())

			lines := s.Feed([]byte("\n"))
			Expect(asStrings(lines)).To(Equal([]string{`{"a":12}`}))
		})

		It("fails once an unterminated segment outgrows the limit", func() {
			s.MaxLineSize = 8
			lines := s.Feed([]byte("{\"a\":1}\n{\"b\":\"x"))
			Expect(asStrings(lines)).To(Equal([]string{`{"a":1}`}))
			Expect(s.Err()).NotTo(HaveOccurred())

			Expect(s.Feed([]byte("yz\"}"))).To(BeEmpty())
			Expect(s.Err()).To(MatchError(ndjson.ErrLineTooLong))
			Expect(s.Pending()).To(BeZero())

			Expect(s.Feed([]byte("\n{\"c\":3}\n"))).To(BeEmpty())
		})

		It("defaults to one mebibyte", func() {
			s.Feed(bytes.Repeat([]byte("x"), ndjson.DefaultMaxLineSize))
			Expect(s.Err()).NotTo(HaveOccurred())

			s.Feed([]byte("x"))
			Expect(s.Err()).To(MatchError(ndjson.ErrLineTooLong))
		})
	})

	Describe("Flush", func() {
		It("returns the residual segment and resets", func() {
			s.Feed([]byte("{\"a\":1}\n{\"done\":true}"))
			Expect(string(s.Flush())).To(Equal(`{"done":true}`))
			Expect(s.Pending()).To(BeZero())
			Expect(s.Flush()).To(BeNil())
		})

		It("returns nil for a whitespace residual", func() {
			s.Feed([]byte("{\"a\":1}\n   "))
			Expect(s.Flush()).To(BeNil())
		})
	})
})
