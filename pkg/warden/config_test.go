package warden_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/log-warden/pkg/warden"
)

var _ = Describe("Configuration", Ordered, func() {
	BeforeEach(func() {
		warden.ConfigSpec.Reset()
		Expect(warden.ConfigSpec.LoadConfiguration("")).To(Succeed())
		warden.ConfigSpec.Set("source.url", "https://api.example.com")
		warden.ConfigSpec.Set("source.api-key", "key")
	})

	AfterEach(func() {
		warden.ConfigSpec.Reset()
		_ = os.Unsetenv("LOG_WARDEN_LOG_LEVEL")
	})

	Describe("ConfigSpec", func() {
		It("should carry the documented defaults", func() {
			Expect(warden.ConfigSpec.GetString("log-level")).To(Equal("info"))
			Expect(warden.ConfigSpec.GetInt("source.page-limit")).To(Equal(100))
			Expect(warden.ConfigSpec.GetInt("store.batch-size")).To(Equal(500))
			Expect(warden.ConfigSpec.GetInt("retry.max-retries")).To(Equal(3))
			Expect(warden.ConfigSpec.GetInt("collector.interval-minutes")).To(Equal(50))
			Expect(warden.ConfigSpec.GetInt("audit.interval-hours")).To(Equal(24))
			Expect(warden.ConfigSpec.GetString("sanitize.mask-token")).To(Equal(warden.DefaultMaskToken))
		})

		It("should load values from environment variables", func() {
			Expect(os.Setenv("LOG_WARDEN_LOG_LEVEL", "debug")).To(Succeed())
			warden.ConfigSpec.Reset()
			Expect(warden.ConfigSpec.LoadConfiguration("")).To(Succeed())

			Expect(warden.ConfigSpec.GetString("log-level")).To(Equal("debug"))
		})
	})

	Describe("ValidateConfig", func() {
		It("should accept the defaults once the source is configured", func() {
			Expect(warden.ValidateConfig()).To(Succeed())
		})

		It("should require the source URL", func() {
			warden.ConfigSpec.Set("source.url", "")
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("source.url")))
		})

		It("should require the API key", func() {
			warden.ConfigSpec.Set("source.api-key", "")
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("source.api-key")))
		})

		It("should reject an invalid log level", func() {
			warden.ConfigSpec.Set("log-level", "loud")
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("log-level")))
		})

		It("should reject a non-positive page limit", func() {
			warden.ConfigSpec.Set("source.page-limit", 0)
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("page-limit")))
		})

		It("should bound the batch size", func() {
			warden.ConfigSpec.Set("store.batch-size", warden.MaxBatchSize+1)
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("batch-size")))
		})

		It("should reject negative retries", func() {
			warden.ConfigSpec.Set("retry.max-retries", -1)
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("max-retries")))
		})

		It("should require stakeholders when the email relay is configured", func() {
			warden.ConfigSpec.Set("notify.email-url", "https://relay.example.com")
			Expect(warden.ValidateConfig()).To(MatchError(ContainSubstring("stakeholders")))

			warden.ConfigSpec.Set("notify.stakeholders", "ops@example.com")
			Expect(warden.ValidateConfig()).To(Succeed())
		})
	})
})
