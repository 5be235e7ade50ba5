package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("server.listen")).To(Equal(defaults.Server.Listen))
		Expect(v.GetString("storage.driver")).To(Equal("inmemory"))
		Expect(v.GetDuration("server.rate_limit_window").Minutes()).To(Equal(15.0))
		Expect(v.GetInt("events.workers")).To(Equal(3))
	})

	It("reads config file values over defaults", func() {
		data := `[server]
listen = ":9000"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("server.listen")).To(Equal(":9000"))
		Expect(v.GetString("server.allow_origin")).To(Equal("http://localhost:5173"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[storage]
driver = "sqlite"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		os.Setenv("CHATRELAY_STORAGE_DRIVER", "postgres")
		defer os.Unsetenv("CHATRELAY_STORAGE_DRIVER")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("storage.driver")).To(Equal("postgres"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
		Expect(v.GetString("server.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[server]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
		Expect(v.GetString("server.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})
		Expect(v.GetString("server.listen")).To(Equal(":3001"))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)

		f := cmd.Flags().Lookup("api-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.Usage).To(Equal("chatrelay server URL"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Client.APITarget))
	})

	It("AddIntFlag carries the default", func() {
		cmd := &cobra.Command{Use: "test"}
		var limit int
		config.AddIntFlag(cmd, config.Flags, config.FlagRateLimitMax, &limit)

		f := cmd.Flags().Lookup("rate-limit")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("100"))
	})
})
