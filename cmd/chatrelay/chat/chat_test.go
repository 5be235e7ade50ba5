package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

const (
	modelID    = "1b7d5f0e-2f4c-4c1e-8f4b-0e9d3c2a1b00"
	existingID = "7f0c1c7e-4a53-4c55-9c55-6a0a1f0c2d11"
	createdID  = "3c9e1d2b-7a6f-4e5d-8c4b-2a1f0e9d8c7b"
)

// fakeRelay serves the subset of the chatrelay API the chat command calls.
type fakeRelay struct {
	mu       sync.Mutex
	created  []map[string]any
	messages []string
	known    map[string]string
}

func (f *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%q,"title":%q,"model_id":%q}`, createdID, body["title"], body["model_id"])
	})

	mux.HandleFunc("GET /api/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		model, ok := f.known[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"Conversation not found"}`)
			return
		}
		fmt.Fprintf(w, `{"id":%q,"model_id":%q}`, r.PathValue("id"), model)
	})

	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ConversationID string `json:"conversation_id"`
			Message        string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.messages = append(f.messages, body.ConversationID+":"+body.Message)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"echo \",\"done\":false}\n\n")
		fmt.Fprintf(w, "data: {\"content\":%q,\"done\":false}\n\n", body.Message)
		fmt.Fprint(w, "data: {\"done\":true,\"message_id\":\"m1\",\"tokens_used\":3}\n\n")
	})

	return mux
}

var _ = Describe("Chat Command", func() {
	var (
		tmpDir string
		relay  *fakeRelay
		server *httptest.Server
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chat-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		relay = &fakeRelay{known: map[string]string{existingID: modelID}}
		server = httptest.NewServer(relay.handler())
		DeferCleanup(server.Close)

		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetToken(server.URL, "tok")).To(Succeed())
	})

	run := func(input string, args ...string) (string, error) {
		cmd := chatcmder.NewChatCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().BoolP("debug", "d", false, "")

		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetIn(strings.NewReader(input))
		cmd.SetArgs(append([]string{"--config-dir", tmpDir, "--api-target", server.URL}, args...))

		err := cmd.Execute()
		return out.String(), err
	}

	savedState := func() *dotdir.ChatState {
		state, err := dotdir.NewManager().LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return state
	}

	Describe("NewChatCmd", func() {
		var cmd *cobra.Command

		BeforeEach(func() {
			cmd = chatcmder.NewChatCmd()
		})

		It("creates a command with the correct use string", func() {
			Expect(cmd.Use).To(Equal("chat"))
		})

		It("registers its flags", func() {
			Expect(cmd.Flags().Lookup("model").Shorthand).To(Equal("m"))
			Expect(cmd.Flags().Lookup("api-target").DefValue).To(Equal("http://localhost:3001"))
			Expect(cmd.Flags().Lookup("new")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("conversation")).NotTo(BeNil())
		})
	})

	It("creates a conversation, streams replies and saves the chat state", func() {
		out, err := run("hello\n\n/exit\n", "--model", modelID, "--title", "Greetings")
		Expect(err).NotTo(HaveOccurred())

		Expect(relay.created).To(HaveLen(1))
		Expect(relay.created[0]).To(HaveKeyWithValue("title", "Greetings"))
		Expect(relay.created[0]).To(HaveKeyWithValue("model_id", modelID))
		Expect(relay.messages).To(Equal([]string{createdID + ":hello"}))

		Expect(out).To(ContainSubstring("New conversation"))
		Expect(out).To(ContainSubstring("echo hello"))

		Expect(savedState()).To(Equal(&dotdir.ChatState{ConversationID: createdID, ModelID: modelID}))
	})

	It("resumes the saved conversation", func() {
		Expect(dotdir.NewManager().SaveChatState(&dotdir.ChatState{
			ConversationID: existingID,
			ModelID:        modelID,
		}, tmpDir)).To(Succeed())

		out, err := run("again\n")
		Expect(err).NotTo(HaveOccurred())

		Expect(relay.created).To(BeEmpty())
		Expect(relay.messages).To(Equal([]string{existingID + ":again"}))
		Expect(out).To(ContainSubstring("Resuming"))
	})

	It("takes the model from the conversation when none is given", func() {
		_, err := run("hi\n", "--conversation", existingID)
		Expect(err).NotTo(HaveOccurred())
		Expect(savedState().ModelID).To(Equal(modelID))
	})

	It("starts over when the saved conversation is gone", func() {
		Expect(dotdir.NewManager().SaveChatState(&dotdir.ChatState{
			ConversationID: "00000000-0000-4000-8000-000000000000",
			ModelID:        modelID,
		}, tmpDir)).To(Succeed())

		_, err := run("/exit\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(relay.created).To(HaveLen(1))
		Expect(savedState().ConversationID).To(Equal(createdID))
	})

	It("fails for an explicit conversation that does not exist", func() {
		_, err := run("", "--conversation", "00000000-0000-4000-8000-000000000000")
		Expect(err).To(MatchError(ContainSubstring("Conversation not found")))
	})

	It("starts a new conversation with --new", func() {
		Expect(dotdir.NewManager().SaveChatState(&dotdir.ChatState{
			ConversationID: existingID,
			ModelID:        modelID,
		}, tmpDir)).To(Succeed())

		_, err := run("/exit\n", "--new")
		Expect(err).NotTo(HaveOccurred())
		Expect(relay.created).To(HaveLen(1))
		Expect(relay.created[0]).To(HaveKeyWithValue("model_id", modelID))
		Expect(savedState()).To(Equal(&dotdir.ChatState{ConversationID: createdID, ModelID: modelID}))
	})

	It("requires a model for a new conversation", func() {
		_, err := run("")
		Expect(err).To(MatchError(ContainSubstring("--model is required")))
	})

	It("requires a stored token", func() {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.RemoveToken(server.URL)).To(Succeed())
		GinkgoT().Setenv(credentials.TokenEnvVar, "")

		_, err = run("", "--model", modelID)
		Expect(err).To(MatchError(ContainSubstring("no access token")))
	})
})
