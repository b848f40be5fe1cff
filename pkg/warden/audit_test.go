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

var _ = Describe("AuditEngine", func() {
	var (
		ctx       context.Context
		source    *testutil.FakeSource
		store     *testutil.FakeLogStore
		reports   *testutil.FakeReportStore
		notifier  *testutil.FakeNotifier
		artifacts *testutil.FakeArtifactWriter
		engine    *warden.AuditEngine

		auditDate time.Time
	)

	seedStandardized := func(collection string, raw []warden.RawLogRecord) {
		for _, record := range raw {
			store.Seed(collection, warden.StandardizedLogRecord{
				LogID:     record.LogID,
				Timestamp: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
			})
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		source = testutil.NewFakeSource()
		store = testutil.NewFakeLogStore()
		reports = testutil.NewFakeReportStore()
		notifier = &testutil.FakeNotifier{}
		artifacts = &testutil.FakeArtifactWriter{}
		auditDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

		logger := testLogger()
		transformer := warden.NewTransformer(logger)
		sanitizer := warden.NewSanitizer([]string{"text", "chapa", "emplid"}, "")

		fetcher := warden.NewFetcher(warden.FetcherConfig{
			Source:    source,
			PageLimit: 100,
			Logger:    logger,
		})

		persistence := warden.NewPersistenceEngine(warden.PersistenceConfig{
			Store:     store,
			BatchSize: 500,
			Retry: warden.RetryPolicy{
				MaxRetries:     1,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     time.Millisecond,
			},
			Logger: logger,
		})

		engine = warden.NewAuditEngine(warden.AuditConfig{
			Fetcher:     fetcher,
			Transformer: transformer,
			Sanitizer:   sanitizer,
			Persistence: persistence,
			LogStore:    store,
			Reports:     reports,
			Artifacts:   artifacts,
			Notifier:    notifier,
			Logger:      logger,
		})
	})

	Describe("AuditForDay", func() {
		It("should reject a zero date", func() {
			_, err := engine.AuditForDay(ctx, time.Time{})

			var validationErr *warden.ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
		})

		Context("when every fetched record is already stored", func() {
			BeforeEach(func() {
				records := rawRecords("g", 5)
				source.Assistants = []warden.Assistant{liveAssistant("geduc", "env-geduc")}
				source.AddPages("env-geduc", nil, records)
				seedStandardized("geduc", records)
			})

			It("should produce a SUCCESS report with full counts", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())

				Expect(report.SyncStatus.Status).To(Equal(warden.SyncSuccess))
				Expect(report.SyncStatus.IncludedLogs).To(HaveLen(5))
				Expect(report.SyncStatus.MissingLogs).To(BeEmpty())
				Expect(report.Summary.TotalLogs).To(Equal(5))
				Expect(report.Summary.IncludedLogs).To(Equal(5))
				Expect(report.Summary.MissingLogs).To(BeZero())
				Expect(report.ID).NotTo(BeEmpty())
				Expect(report.Window).To(Equal(warden.DayWindow(auditDate)))
				Expect(report.SanitizedLogs).To(BeEmpty())
			})

			It("should persist the report and write the file artifact", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())

				Expect(reports.Reports).To(HaveLen(1))
				Expect(reports.Reports[0].ID).To(Equal(report.ID))

				Expect(artifacts.Writes).To(HaveLen(1))
				Expect(artifacts.Writes[0].Name).To(Equal("sync-report"))
			})

			It("should not rewrite stored records", func() {
				_, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())
				Expect(store.UpsertCalls).To(BeZero())
			})
		})

		Context("when some fetched records are missing from the store", func() {
			var records []warden.RawLogRecord

			BeforeEach(func() {
				records = rawRecords("g", 10)
				source.Assistants = []warden.Assistant{liveAssistant("geduc", "env-geduc")}
				source.AddPages("env-geduc", nil, records)
				seedStandardized("geduc", records[:7])
			})

			It("should classify the day as PARTIAL and list the gap", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())

				Expect(report.SyncStatus.Status).To(Equal(warden.SyncPartial))
				Expect(report.SyncStatus.IncludedLogs).To(HaveLen(7))
				Expect(report.SyncStatus.MissingLogs).To(HaveLen(3))
				Expect(report.Summary.TotalLogs).To(Equal(10))
			})

			It("should repair the gap so every fetched record ends up stored", func() {
				_, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())

				for _, record := range records {
					Expect(store.Has("geduc", record.LogID)).To(BeTrue())
				}
				Expect(store.Count("geduc")).To(Equal(10))
			})

			It("should attach sanitized logs for the affected assistant only", func() {
				source.Assistants = append(source.Assistants, liveAssistant("gfut", "env-gfut"))
				healthy := rawRecords("f", 2)
				source.AddPages("env-gfut", nil, healthy)
				seedStandardized("gfut", healthy)

				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())

				Expect(report.SanitizedLogs).To(HaveKey("geduc"))
				Expect(report.SanitizedLogs).NotTo(HaveKey("gfut"))

				for _, record := range report.SanitizedLogs["geduc"] {
					input := record.Response["input"].(map[string]any)
					Expect(input["text"]).To(Equal(warden.DefaultMaskToken))
				}
			})

			It("should not repair again when re-audited", func() {
				first, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())
				upsertsAfterRepair := store.UpsertCalls

				second, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())

				// The existing PARTIAL report short-circuits the re-audit
				Expect(second.ID).To(Equal(first.ID))
				Expect(store.UpsertCalls).To(Equal(upsertsAfterRepair))
				Expect(reports.Reports).To(HaveLen(1))
			})
		})

		Context("when a report already exists for the day", func() {
			BeforeEach(func() {
				reports.Reports = append(reports.Reports, warden.SyncReport{
					ID:         "existing-report",
					Window:     warden.DayWindow(auditDate),
					SyncStatus: warden.SyncStatus{Status: warden.SyncSuccess},
				})
			})

			It("should return the existing report without touching the source", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.ID).To(Equal("existing-report"))
				Expect(source.ListLogsCalls).To(BeEmpty())
			})
		})

		Context("when only a FAILURE report exists for the day", func() {
			BeforeEach(func() {
				reports.Reports = append(reports.Reports, warden.SyncReport{
					ID:         "failed-report",
					Window:     warden.DayWindow(auditDate),
					SyncStatus: warden.SyncStatus{Status: warden.SyncFailure},
				})
				source.Assistants = []warden.Assistant{liveAssistant("geduc", "env-geduc")}
				source.AddPages("env-geduc", nil, nil)
			})

			It("should audit the day again", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.ID).NotTo(Equal("failed-report"))
				Expect(report.SyncStatus.Status).To(Equal(warden.SyncSuccess))
			})
		})

		Context("when fetching fails", func() {
			BeforeEach(func() {
				source.ListAssistantsErr = errors.New("platform down")
			})

			It("should persist a FAILURE report and notify stakeholders", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).To(MatchError(ContainSubstring("platform down")))
				Expect(report.SyncStatus.Status).To(Equal(warden.SyncFailure))

				Expect(reports.Reports).To(HaveLen(1))
				Expect(reports.Reports[0].SyncStatus.Status).To(Equal(warden.SyncFailure))

				Expect(notifier.Notifications).To(HaveLen(1))
				Expect(notifier.Notifications[0].Job).To(Equal(warden.AuditJobName))
			})
		})

		Context("when persisting the report fails", func() {
			BeforeEach(func() {
				source.Assistants = []warden.Assistant{liveAssistant("geduc", "env-geduc")}
				source.AddPages("env-geduc", nil, nil)
				reports.CreateErr = errors.New("insert rejected")
			})

			It("should fail the audit and notify stakeholders", func() {
				_, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).To(MatchError(ContainSubstring("insert rejected")))
				Expect(notifier.Notifications).To(HaveLen(1))
			})
		})

		Context("when writing the file artifact fails", func() {
			BeforeEach(func() {
				source.Assistants = []warden.Assistant{liveAssistant("geduc", "env-geduc")}
				source.AddPages("env-geduc", nil, nil)
				artifacts.Err = errors.New("disk full")
			})

			It("should still complete the audit", func() {
				report, err := engine.AuditForDay(ctx, auditDate)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.SyncStatus.Status).To(Equal(warden.SyncSuccess))
				Expect(reports.Reports).To(HaveLen(1))
			})
		})
	})

	Describe("CheckPreviousAudits", func() {
		BeforeEach(func() {
			source.Assistants = []warden.Assistant{liveAssistant("geduc", "env-geduc")}
			source.AddPages("env-geduc", nil, nil)
		})

		It("should audit days lacking a report and days holding only a FAILURE one", func() {
			day1 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
			day2 := day1.AddDate(0, 0, 1)
			day3 := day1.AddDate(0, 0, 2)

			reports.Reports = append(reports.Reports,
				warden.SyncReport{
					ID:         "day1-ok",
					Window:     warden.DayWindow(day1),
					SyncStatus: warden.SyncStatus{Status: warden.SyncSuccess},
				},
				warden.SyncReport{
					ID:         "day3-failed",
					Window:     warden.DayWindow(day3),
					SyncStatus: warden.SyncStatus{Status: warden.SyncFailure},
				},
			)

			err := engine.CheckPreviousAudits(ctx, warden.TimeWindow{Start: day1, End: day3})
			Expect(err).NotTo(HaveOccurred())

			// day2 and day3 were backfilled, day1 untouched
			Expect(reports.Reports).To(HaveLen(4))
			var windows []time.Time
			for _, report := range reports.Reports[2:] {
				windows = append(windows, report.Window.Start)
			}
			Expect(windows).To(ConsistOf(warden.DayWindow(day2).Start, warden.DayWindow(day3).Start))
		})

		It("should collect per-day failures without stopping the backfill", func() {
			source.ListAssistantsErr = errors.New("platform down")
			day1 := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

			err := engine.CheckPreviousAudits(ctx, warden.TimeWindow{
				Start: day1,
				End:   day1.AddDate(0, 0, 1),
			})
			Expect(err).To(MatchError(ContainSubstring("2026-08-25")))
			Expect(err).To(MatchError(ContainSubstring("2026-08-26")))
		})

		It("should reject an invalid window", func() {
			err := engine.CheckPreviousAudits(ctx, warden.TimeWindow{})

			var validationErr *warden.ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
		})
	})
})
