package warden_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/log-warden/pkg/warden"
)

var _ = Describe("Sanitizer", func() {
	var sanitizer *warden.Sanitizer

	BeforeEach(func() {
		sanitizer = warden.NewSanitizer([]string{"text", "chapa", "emplid", "cpf"}, "")
	})

	It("should mask sensitive string fields at any depth", func() {
		record := warden.RawLogRecord{
			LogID: "log-1",
			Response: map[string]any{
				"input": map[string]any{"text": "my cpf is 123"},
				"context": map[string]any{
					"skills": map[string]any{
						"main skill": map[string]any{
							"user_defined": map[string]any{"chapa": "12345"},
						},
					},
				},
			},
		}

		sanitized := sanitizer.SanitizeRecords([]warden.RawLogRecord{record})
		Expect(sanitized).To(HaveLen(1))

		response := sanitized[0].Response
		input := response["input"].(map[string]any)
		Expect(input["text"]).To(Equal(warden.DefaultMaskToken))

		userDefined := response["context"].(map[string]any)["skills"].(map[string]any)["main skill"].(map[string]any)["user_defined"].(map[string]any)
		Expect(userDefined["chapa"]).To(Equal(warden.DefaultMaskToken))
	})

	It("should mask sensitive fields inside slices", func() {
		record := warden.RawLogRecord{
			Response: map[string]any{
				"output": map[string]any{
					"generic": []any{
						map[string]any{"response_type": "text", "text": "secret answer"},
					},
				},
			},
		}

		sanitized := sanitizer.SanitizeRecords([]warden.RawLogRecord{record})
		generic := sanitized[0].Response["output"].(map[string]any)["generic"].([]any)
		Expect(generic[0].(map[string]any)["text"]).To(Equal(warden.DefaultMaskToken))
	})

	It("should pass non-string values under sensitive keys through unchanged", func() {
		record := warden.RawLogRecord{
			Response: map[string]any{
				"cpf": 12345678900,
				"text": map[string]any{
					"cpf": "nested secret",
				},
			},
		}

		sanitized := sanitizer.SanitizeRecords([]warden.RawLogRecord{record})
		response := sanitized[0].Response
		Expect(response["cpf"]).To(Equal(12345678900))

		// The non-string value is not even recursed into
		nested := response["text"].(map[string]any)
		Expect(nested["cpf"]).To(Equal("nested secret"))
	})

	It("should leave non-sensitive fields untouched", func() {
		record := warden.RawLogRecord{
			Response: map[string]any{
				"input": map[string]any{"language": "pt-br"},
			},
		}

		sanitized := sanitizer.SanitizeRecords([]warden.RawLogRecord{record})
		input := sanitized[0].Response["input"].(map[string]any)
		Expect(input["language"]).To(Equal("pt-br"))
	})

	It("should not modify the input records", func() {
		record := rawRecord("log-1", "2026-08-28T10:00:00.000Z")

		_ = sanitizer.SanitizeRecords([]warden.RawLogRecord{record})

		input := record.Response["input"].(map[string]any)
		Expect(input["text"]).To(Equal("hello from log-1"))
	})

	It("should use a custom mask token when configured", func() {
		custom := warden.NewSanitizer([]string{"text"}, "[redacted]")
		record := warden.RawLogRecord{
			Response: map[string]any{"input": map[string]any{"text": "hi"}},
		}

		sanitized := custom.SanitizeRecords([]warden.RawLogRecord{record})
		input := sanitized[0].Response["input"].(map[string]any)
		Expect(input["text"]).To(Equal("[redacted]"))
	})
})
