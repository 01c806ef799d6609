package syncerr_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

var _ = Describe("Error", func() {
	Describe("Error()", func() {
		It("should include kind, operation, status and detail", func() {
			err := syncerr.Transient("fetch page 2", 503, "http://example.com", "upstream down", nil)
			Expect(err.Error()).To(Equal("transient: fetch page 2 (HTTP 503): upstream down"))
		})

		It("should include the wrapped error", func() {
			err := syncerr.Persistence("save state", errors.New("disk full"))
			Expect(err.Error()).To(Equal("persistence: save state: disk full"))
		})

		It("should omit empty parts", func() {
			err := &syncerr.Error{Kind: syncerr.KindNotFound}
			Expect(err.Error()).To(Equal("not_found"))
		})
	})

	Describe("KindOf", func() {
		It("should find the kind through wrapping", func() {
			err := fmt.Errorf("cycle failed: %w", syncerr.Malformed("fetch page 1", "http://x", errors.New("bad json")))
			Expect(syncerr.KindOf(err)).To(Equal(syncerr.KindMalformed))
			Expect(syncerr.IsKind(err, syncerr.KindMalformed)).To(BeTrue())
			Expect(syncerr.IsKind(err, syncerr.KindTransient)).To(BeFalse())
		})

		It("should return unknown for foreign errors", func() {
			Expect(syncerr.KindOf(errors.New("boom"))).To(Equal(syncerr.KindUnknown))
			Expect(syncerr.IsKind(nil, syncerr.KindUnknown)).To(BeFalse())
		})
	})

	Describe("errors.Is", func() {
		It("should match on kind only", func() {
			err := fmt.Errorf("wrap: %w", syncerr.NotFound("fetch page 9", 404, "http://x", ""))
			Expect(errors.Is(err, &syncerr.Error{Kind: syncerr.KindNotFound})).To(BeTrue())
			Expect(errors.Is(err, &syncerr.Error{Kind: syncerr.KindTransient})).To(BeFalse())
		})
	})

	Describe("Unwrap", func() {
		It("should expose the cause", func() {
			cause := errors.New("connection refused")
			err := syncerr.Transient("fetch page 1", 0, "http://x", "", cause)
			Expect(errors.Is(err, cause)).To(BeTrue())
		})
	})

	Describe("Kind.String", func() {
		It("should name every kind", func() {
			Expect(syncerr.KindNotFound.String()).To(Equal("not_found"))
			Expect(syncerr.KindTransient.String()).To(Equal("transient"))
			Expect(syncerr.KindMalformed.String()).To(Equal("malformed"))
			Expect(syncerr.KindPersistence.String()).To(Equal("persistence"))
			Expect(syncerr.KindUnknown.String()).To(Equal("unknown"))
		})
	})
})
