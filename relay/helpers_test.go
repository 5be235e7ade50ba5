package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// fixture is a user with one conversation and one enabled model served by
// the given upstream.
type fixture struct {
	driver       *inmemory.Driver
	user         *storage.Profile
	conversation *storage.Conversation
	endpoint     *storage.Endpoint
	model        *storage.Model
}

func newFixture(upstreamURL string) *fixture {
	ctx := context.Background()
	driver := inmemory.NewDriver()

	user, err := driver.UpsertProfile(ctx, &storage.Profile{Email: "ada@example.com", IsActive: true})
	Expect(err).NotTo(HaveOccurred())

	conv, err := driver.CreateConversation(ctx, user.ID, "Test", nil)
	Expect(err).NotTo(HaveOccurred())

	ep, err := driver.CreateEndpoint(ctx, &storage.Endpoint{Name: "local", BaseURL: upstreamURL, IsEnabled: true})
	Expect(err).NotTo(HaveOccurred())

	model, err := driver.CreateModel(ctx, &storage.Model{
		EndpointID: ep.ID,
		Name:       "Llama 3",
		ModelID:    "llama3",
		Parameters: map[string]any{"temperature": 0.2},
		IsEnabled:  true,
	})
	Expect(err).NotTo(HaveOccurred())

	return &fixture{driver: driver, user: user, conversation: conv, endpoint: ep, model: model}
}

func (f *fixture) messages(role storage.MessageRole) []*storage.Message {
	all, err := f.driver.ListMessages(context.Background(), f.conversation.ID)
	Expect(err).NotTo(HaveOccurred())
	var out []*storage.Message
	for _, m := range all {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) usageLogs() []*storage.UsageLog {
	logs, err := f.driver.ListUsageLogs(context.Background(), storage.UsageQuery{UserID: f.user.ID, Limit: 100})
	Expect(err).NotTo(HaveOccurred())
	return logs
}

// subjectVerifier treats the raw token as the user ID.
var subjectVerifier = auth.VerifierFunc(func(_ context.Context, token string) (*auth.Claims, error) {
	if token == "bad" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: token}}, nil
})

func newTestApp(r *Relay, profiles storage.ProfileStore) *fiber.App {
	authn := auth.NewAuthenticator(subjectVerifier, profiles, nil)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/api/chat", auth.Middleware(authn, auth.MiddlewareConfig{AllowQueryToken: true}), r.Stream)
	app.Post("/api/chat", auth.Middleware(authn, auth.MiddlewareConfig{}), r.Chat)
	return app
}

// ndjsonUpstream serves the given lines for /api/generate and counts calls.
type ndjsonUpstream struct {
	*httptest.Server
	calls    atomic.Int32
	lastBody atomic.Value
}

func newNDJSONUpstream(status int, lines ...string) *ndjsonUpstream {
	u := &ndjsonUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		u.lastBody.Store(string(body))

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("model is loading"))
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, l := range lines {
			_, _ = w.Write([]byte(l))
			flusher.Flush()
		}
	}))
	return u
}

func (u *ndjsonUpstream) body() string {
	s, _ := u.lastBody.Load().(string)
	return s
}

// decodeFrames reads every SSE frame from body.
func decodeFrames(body io.Reader) []sse.Frame {
	r := sse.NewReader(body)
	var out []sse.Frame
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		Expect(err).NotTo(HaveOccurred())
		f, err := sse.DecodeFrame(ev)
		Expect(err).NotTo(HaveOccurred())
		out = append(out, f)
	}
}

// recordingQueue captures enqueued events.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (q *recordingQueue) Enqueue(job worker.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

func (q *recordingQueue) all() []worker.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]worker.Job(nil), q.jobs...)
}

// failingUsageDriver rejects every usage log write.
type failingUsageDriver struct {
	*inmemory.Driver
}

func (d failingUsageDriver) InsertUsageLog(context.Context, *storage.UsageLog) error {
	return errors.New("usage table unavailable")
}

// failingMessageDriver rejects message writes for one role.
type failingMessageDriver struct {
	*inmemory.Driver
	role storage.MessageRole
}

func (d failingMessageDriver) InsertMessage(ctx context.Context, conversationID string, role storage.MessageRole, content string, tokens *int) (*storage.Message, error) {
	if role == d.role {
		return nil, errors.New("messages table unavailable")
	}
	return d.Driver.InsertMessage(ctx, conversationID, role, content, tokens)
}
