package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
)

var _ = Describe("cliui", func() {
	It("formats short and long durations", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("marks results", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})

	It("reports the step outcome and returns its error", func() {
		var out bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&out, "Checking endpoint", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(out.String()).To(ContainSubstring("Checking endpoint"))
		Expect(out.String()).To(HaveSuffix("\n"))
	})

	It("renders markdown", func() {
		rendered, err := cliui.RenderMarkdown("**hello**")
		Expect(err).NotTo(HaveOccurred())
		Expect(rendered).To(ContainSubstring("hello"))
	})
})
