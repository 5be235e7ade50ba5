package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

var _ = Describe("Init Command", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	run := func(args ...string) (string, error) {
		cmd := initcmder.NewInitCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	It("creates .chatrelay with a default config", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Initialized .chatrelay directory"))

		data, err := os.ReadFile(filepath.Join(tmpDir, ".chatrelay", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.ParseConfigTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Listen).To(Equal(":3001"))
		Expect(cfg.Storage.Driver).To(Equal("inmemory"))
	})

	It("leaves an existing config alone", func() {
		_, err := run()
		Expect(err).NotTo(HaveOccurred())

		cfger, err := config.NewConfiger("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.SetConfigValue("storage.driver", "sqlite")).To(Succeed())

		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Already initialized"))

		v, err := cfger.GetConfigValue("storage.driver")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("sqlite"))
	})

	It("honors --config-dir", func() {
		dir := filepath.Join(tmpDir, "deploy")
		_, err := run("--config-dir", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(dir, "config.toml")).To(BeAnExistingFile())
	})

	It("rejects arguments", func() {
		_, err := run("extra")
		Expect(err).To(HaveOccurred())
	})
})
