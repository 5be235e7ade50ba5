package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file and fills the rest with defaults", func() {
			data := `version = 0

[storage]
driver = "sqlite"
sqlite_path = "/var/lib/chatrelay/chat.db"

[server]
rate_limit_max = -1

[events]
backend = "kafka"
brokers = "kafka-1:9092, kafka-2:9092"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/var/lib/chatrelay/chat.db"))
			Expect(cfg.Server.RateLimitMax).To(Equal(-1))
			Expect(cfg.Events.BrokerList()).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))

			defaults := config.NewDefaultConfig()
			Expect(cfg.Server.Listen).To(Equal(defaults.Server.Listen))
			Expect(cfg.Events.Topic).To(Equal(defaults.Events.Topic))
			Expect(cfg.Events.Workers).To(Equal(defaults.Events.Workers))
			Expect(cfg.SSE.Terminal).To(Equal("json"))
		})

		It("rejects an unsupported version", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 7\n"), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})

		It("reports malformed TOML", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[server\n"), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("round trips through config.toml", func() {
			Expect(c.SetConfigValue("storage.driver", "postgres")).To(Succeed())
			Expect(c.SetConfigValue("events.workers", "8")).To(Succeed())

			value, err := c.GetConfigValue("storage.driver")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("postgres"))

			value, err = c.GetConfigValue("events.workers")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("8"))

			_, err = os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.provider", "x")).To(MatchError(ContainSubstring("unknown config key")))
			_, err := c.GetConfigValue("proxy.provider")
			Expect(err).To(HaveOccurred())
		})

		It("validates enumerated values", func() {
			err := c.SetConfigValue("sse.terminal", "xml")
			Expect(err).To(MatchError(ContainSubstring("expected one of json, sentinel")))
		})

		It("validates durations and integers", func() {
			Expect(c.SetConfigValue("ollama.idle_timeout", "soon")).To(HaveOccurred())
			Expect(c.SetConfigValue("server.rate_limit_max", "many")).To(HaveOccurred())
			Expect(c.SetConfigValue("ollama.idle_timeout", "45s")).To(Succeed())
		})
	})

	Describe("keys", func() {
		It("lists every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys[0]).To(Equal("server.listen"))
			Expect(keys).To(ContainElements("auth.jwt_secret", "events.topic", "client.api_target"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
		})

		It("marks secrets", func() {
			Expect(config.IsSecretKey("auth.jwt_secret")).To(BeTrue())
			Expect(config.IsSecretKey("server.listen")).To(BeFalse())
		})
	})
})
