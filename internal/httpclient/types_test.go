package httpclient_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/catalog-watcher/internal/httpclient"
)

var _ = Describe("HTTPError", func() {
	It("should format error message correctly", func() {
		err := httpclient.NewHTTPError(500, "http://api.example.com/v4/anime", "Internal Server Error")
		Expect(err.Error()).To(Equal("HTTP 500 for URL http://api.example.com/v4/anime: Internal Server Error"))
	})

	It("should handle empty message", func() {
		err := httpclient.NewHTTPError(404, "http://example.com", "")
		Expect(err.Error()).To(Equal("HTTP 404 for URL http://example.com: "))
	})
})

var _ = Describe("Response", func() {
	DescribeTable("OK",
		func(code int, ok bool) {
			resp := &httpclient.Response{StatusCode: code}
			Expect(resp.OK()).To(Equal(ok))
		},
		Entry("200", http.StatusOK, true),
		Entry("204", http.StatusNoContent, true),
		Entry("301", http.StatusMovedPermanently, false),
		Entry("404", http.StatusNotFound, false),
		Entry("503", http.StatusServiceUnavailable, false),
	)

	It("should return an HTTPError for failed responses", func() {
		resp := &httpclient.Response{StatusCode: 429, Status: "429 Too Many Requests", URL: "http://x"}
		err := resp.Err()
		Expect(err).To(HaveOccurred())
		var httpErr *httpclient.HTTPError
		Expect(err).To(BeAssignableToTypeOf(httpErr))
		Expect(err.Error()).To(ContainSubstring("HTTP 429"))
	})

	It("should return nil for successful responses", func() {
		resp := &httpclient.Response{StatusCode: 200}
		Expect(resp.Err()).ToNot(HaveOccurred())
	})
})
