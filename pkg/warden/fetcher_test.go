package warden_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/log-warden/pkg/testutil"
	"github.com/scality/log-warden/pkg/warden"
)

var _ = Describe("Fetcher", func() {
	var (
		ctx     context.Context
		source  *testutil.FakeSource
		fetcher *warden.Fetcher
		window  warden.TimeWindow
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = testutil.NewFakeSource()
		window = warden.DayWindow(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))

		fetcher = warden.NewFetcher(warden.FetcherConfig{
			Source:             source,
			ExcludedAssistants: []string{"excluded-bot"},
			PageLimit:          100,
			Logger:             testLogger(),
		})
	})

	Describe("FetchLogs", func() {
		It("should follow pagination cursors until the last page", func() {
			pageA := rawRecords("a", 3)
			pageB := rawRecords("b", 3)
			pageC := rawRecords("c", 2)
			source.AddPages("env-1", []string{"cursor-b", "cursor-c"}, pageA, pageB, pageC)

			records, err := fetcher.FetchLogs(ctx, "env-1", window)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(8))

			// Every page requested exactly once, in cursor order
			Expect(source.ListLogsCalls).To(HaveLen(3))
			Expect(source.ListLogsCalls[0].Cursor).To(Equal(""))
			Expect(source.ListLogsCalls[1].Cursor).To(Equal("cursor-b"))
			Expect(source.ListLogsCalls[2].Cursor).To(Equal("cursor-c"))
		})

		It("should preserve arrival order across pages", func() {
			source.AddPages("env-1", []string{"next"},
				[]warden.RawLogRecord{rawRecord("first", "2026-08-28T10:00:00.000Z")},
				[]warden.RawLogRecord{rawRecord("second", "2026-08-28T11:00:00.000Z")})

			records, err := fetcher.FetchLogs(ctx, "env-1", window)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].LogID).To(Equal("first"))
			Expect(records[1].LogID).To(Equal("second"))
		})

		It("should pass the window and page limit through to the source", func() {
			source.AddPages("env-1", nil, rawRecords("a", 1))

			_, err := fetcher.FetchLogs(ctx, "env-1", window)
			Expect(err).NotTo(HaveOccurred())
			Expect(source.ListLogsCalls[0].Window).To(Equal(window))
			Expect(source.ListLogsCalls[0].PageLimit).To(Equal(100))
		})

		It("should return an empty result for an environment with no logs", func() {
			records, err := fetcher.FetchLogs(ctx, "env-empty", window)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("should reject an inverted window", func() {
			inverted := warden.TimeWindow{Start: window.End, End: window.Start}

			_, err := fetcher.FetchLogs(ctx, "env-1", inverted)

			var validationErr *warden.ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
		})

		It("should propagate source errors", func() {
			source.ListLogsErr["env-1"] = &warden.ExternalAPIError{StatusCode: 429, Err: errors.New("rate limited")}

			_, err := fetcher.FetchLogs(ctx, "env-1", window)

			var apiErr *warden.ExternalAPIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(429))
		})
	})

	Describe("FetchAllAssistants", func() {
		BeforeEach(func() {
			source.Assistants = []warden.Assistant{
				liveAssistant("geduc", "env-geduc"),
				liveAssistant("excluded-bot", "env-excluded"),
				{Name: "draft-only", Environments: []warden.AssistantEnvironment{
					{Name: "draft", EnvironmentID: "env-draft"},
				}},
				liveAssistant("gfut", "env-gfut"),
			}
			source.AddPages("env-geduc", nil, rawRecords("g", 4))
			source.AddPages("env-gfut", nil, rawRecords("f", 2))
		})

		It("should fetch every eligible assistant keyed by name", func() {
			fetched, err := fetcher.FetchAllAssistants(ctx, window)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched).To(HaveLen(2))
			Expect(fetched["geduc"]).To(HaveLen(4))
			Expect(fetched["gfut"]).To(HaveLen(2))
		})

		It("should skip excluded assistants without calling the source", func() {
			_, err := fetcher.FetchAllAssistants(ctx, window)
			Expect(err).NotTo(HaveOccurred())

			for _, call := range source.ListLogsCalls {
				Expect(call.EnvironmentID).NotTo(Equal("env-excluded"))
			}
		})

		It("should skip assistants without a live environment", func() {
			fetched, err := fetcher.FetchAllAssistants(ctx, window)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched).NotTo(HaveKey("draft-only"))
		})

		It("should continue past a failing assistant", func() {
			source.ListLogsErr["env-geduc"] = errors.New("boom")

			fetched, err := fetcher.FetchAllAssistants(ctx, window)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched).NotTo(HaveKey("geduc"))
			Expect(fetched["gfut"]).To(HaveLen(2))
		})

		It("should fail when the assistant listing fails", func() {
			source.ListAssistantsErr = errors.New("listing failed")

			_, err := fetcher.FetchAllAssistants(ctx, window)
			Expect(err).To(MatchError(ContainSubstring("listing failed")))
		})
	})
})
