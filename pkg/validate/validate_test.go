package validate_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/validate"
)

type sample struct {
	ID      string `json:"id" validate:"required,uuid"`
	BaseURL string `json:"base_url" validate:"omitempty,http_url"`
	Role    string `json:"role" validate:"omitempty,oneof=user admin"`
}

var _ = Describe("Struct", func() {
	It("accepts a valid value", func() {
		Expect(validate.Struct(sample{ID: "0b7c8a52-5f0e-4c43-9a4e-8f1d2b5f6a10"})).To(Succeed())
	})

	It("names missing fields by json tag", func() {
		err := validate.Struct(sample{})
		Expect(err).To(MatchError("id is required"))

		var verr *validate.Error
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Missing()).To(BeTrue())
	})

	It("reports malformed fields", func() {
		err := validate.Struct(sample{ID: "not-a-uuid"})
		Expect(err).To(MatchError("id must be a UUID"))

		var verr *validate.Error
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Missing()).To(BeFalse())
	})

	It("reports enum violations with the allowed values", func() {
		err := validate.Struct(sample{ID: "0b7c8a52-5f0e-4c43-9a4e-8f1d2b5f6a10", Role: "root"})
		Expect(err).To(MatchError("role must be one of: user admin"))
	})

	It("validates URLs", func() {
		err := validate.Struct(sample{ID: "0b7c8a52-5f0e-4c43-9a4e-8f1d2b5f6a10", BaseURL: "nope"})
		Expect(err).To(MatchError("base_url must be a valid URL"))
	})
})

var _ = Describe("Var", func() {
	It("validates a single value", func() {
		Expect(validate.Var("0b7c8a52-5f0e-4c43-9a4e-8f1d2b5f6a10", "uuid")).To(Succeed())
		Expect(validate.Var("x", "uuid")).NotTo(Succeed())
	})
})
