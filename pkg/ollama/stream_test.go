package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/ndjson"
	"github.com/papercomputeco/chatrelay/pkg/ollama"
)

// streamingServer writes each line, flushing after every write, then parks
// until the client goes away. The returned channel closes when the request
// context is done.
func streamingServer(lines ...string) (*httptest.Server, <-chan struct{}) {
	gone := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(gone)
		// The server only notices a hang-up once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, l := range lines {
			_, _ = w.Write([]byte(l))
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	return server, gone
}

func collect(s *ollama.Stream) ([]*ollama.Record, error) {
	var out []*ollama.Record
	for {
		rec, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

var _ = Describe("Stream", func() {
	var (
		ctx    context.Context
		client *ollama.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = ollama.NewClient(ollama.Config{IdleTimeout: 2 * time.Second})
	})

	It("yields records and ends right after the final one without waiting for upstream close", func() {
		server, gone := streamingServer(
			`{"response":"Hel","done":false}`+"\n",
			`{"response":"lo","done":false}`+"\n",
			`{"done":true,"eval_count":2}`+"\n",
		)
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m", Prompt: "p"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		records, err := collect(stream)
		Expect(err).To(MatchError(io.EOF))
		Expect(records).To(HaveLen(3))
		Expect(records[0].ContentDelta).To(Equal("Hel"))
		Expect(records[1].ContentDelta).To(Equal("lo"))
		Expect(records[2].IsFinal).To(BeTrue())
		Expect(*records[2].EvalCount).To(Equal(2))
		Expect(records[0].EvalCount).To(BeNil())

		Eventually(gone).Should(BeClosed())
	})

	It("requests streaming mode", func() {
		var got ollama.GenerateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"done":true}` + "\n"))
		}))
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m", Prompt: "p"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		_, _ = collect(stream)
		Expect(got.Stream).To(BeTrue())
		Expect(got.Prompt).To(Equal("p"))
	})

	It("skips malformed lines", func() {
		server, _ := streamingServer(
			`{"response":"a","done":false}`+"\n",
			"not-json{{{\n",
			`["not","an","object"]`+"\n",
			`{"response":"b","done":false}`+"\n",
			`{"done":true}`+"\n",
		)
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		records, err := collect(stream)
		Expect(err).To(MatchError(io.EOF))
		Expect(records).To(HaveLen(3))
		Expect(records[0].ContentDelta).To(Equal("a"))
		Expect(records[1].ContentDelta).To(Equal("b"))
	})

	It("reports ErrTruncated when the body ends before the final record", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"response":"a","done":false}` + "\n" + `{"response":"b","do`))
		}))
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		records, err := collect(stream)
		Expect(err).To(MatchError(ollama.ErrTruncated))
		Expect(records).To(HaveLen(1))

		_, err = stream.Next()
		Expect(err).To(MatchError(ollama.ErrTruncated))
	})

	It("fails with an upstream error when a line never ends", func() {
		server, _ := streamingServer(
			`{"response":"a","done":false}`+"\n",
			strings.Repeat("x", ndjson.DefaultMaxLineSize+1),
		)
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		records, err := collect(stream)
		Expect(records).To(HaveLen(1))

		var upstream *ollama.UpstreamError
		Expect(errors.As(err, &upstream)).To(BeTrue())
		Expect(upstream.Timeout).To(BeFalse())
		Expect(err).To(MatchError(ndjson.ErrLineTooLong))
	})

	It("fails to open on a non-2xx status", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		DeferCleanup(server.Close)

		_, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})

		var upErr *ollama.UpstreamError
		Expect(errors.As(err, &upErr)).To(BeTrue())
		Expect(upErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("times out when the upstream stalls mid-stream", func() {
		client = ollama.NewClient(ollama.Config{IdleTimeout: 100 * time.Millisecond})
		server, gone := streamingServer(`{"response":"a","done":false}` + "\n")
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		rec, err := stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ContentDelta).To(Equal("a"))

		_, err = stream.Next()
		var upErr *ollama.UpstreamError
		Expect(errors.As(err, &upErr)).To(BeTrue())
		Expect(upErr.Timeout).To(BeTrue())

		Eventually(gone).Should(BeClosed())
	})

	It("times out when no response headers arrive", func() {
		client = ollama.NewClient(ollama.Config{IdleTimeout: 100 * time.Millisecond})
		gone := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			defer close(gone)
			_, _ = io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		DeferCleanup(server.Close)

		_, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})

		var upErr *ollama.UpstreamError
		Expect(errors.As(err, &upErr)).To(BeTrue())
		Expect(upErr.Timeout).To(BeTrue())

		Eventually(gone, 2*time.Second).Should(BeClosed())
	})

	It("releases the upstream connection on Close", func() {
		server, gone := streamingServer(`{"response":"a","done":false}` + "\n")
		DeferCleanup(server.Close)

		stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = stream.Next()
		Expect(err).NotTo(HaveOccurred())

		Expect(stream.Close()).To(Succeed())
		Expect(stream.Close()).To(Succeed())
		Eventually(gone).Should(BeClosed())

		_, err = stream.Next()
		Expect(err).To(MatchError(ollama.ErrClosed))
	})

	It("returns the caller's cancellation unchanged", func() {
		server, gone := streamingServer(`{"response":"a","done":false}` + "\n")
		DeferCleanup(server.Close)

		cctx, cancel := context.WithCancel(ctx)
		stream, err := client.GenerateStream(cctx, ollama.GenerateRequest{Model: "m"}, ollama.Endpoint{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		_, err = stream.Next()
		Expect(err).NotTo(HaveOccurred())

		cancel()
		_, err = stream.Next()
		Expect(err).To(MatchError(context.Canceled))
		Eventually(gone).Should(BeClosed())
	})
})
