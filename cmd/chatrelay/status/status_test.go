package statuscmder_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	statuscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/status"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

var _ = Describe("Status Command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-status-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)
		GinkgoT().Setenv(credentials.TokenEnvVar, "")
	})

	run := func(args ...string) (string, error) {
		cmd := statuscmder.NewStatusCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		err := cmd.Execute()
		return out.String(), err
	}

	It("reports a missing token and no saved conversation", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("http://localhost:3001"))
		Expect(out).To(ContainSubstring("missing"))
		Expect(out).To(ContainSubstring("No saved conversation"))
	})

	It("shows the saved conversation and token", func() {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SetToken("http://localhost:3001", "tok")).To(Succeed())
		Expect(dotdir.NewManager().SaveChatState(&dotdir.ChatState{
			ConversationID: "conv-1",
			ModelID:        "model-1",
		}, tmpDir)).To(Succeed())

		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("stored"))
		Expect(out).To(ContainSubstring("conv-1"))
		Expect(out).To(ContainSubstring("model-1"))
	})

	It("clears the saved conversation with --reset", func() {
		ddm := dotdir.NewManager()
		Expect(ddm.SaveChatState(&dotdir.ChatState{ConversationID: "conv-1"}, tmpDir)).To(Succeed())

		_, err := run("--reset")
		Expect(err).NotTo(HaveOccurred())

		state, err := ddm.LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})
})
