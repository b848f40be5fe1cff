package warden_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/log-warden/pkg/testutil"
	"github.com/scality/log-warden/pkg/warden"
)

var _ = Describe("FileArtifactWriter", func() {
	var (
		ctx      context.Context
		dir      string
		uploader *testutil.FakeUploader
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		uploader = testutil.NewFakeUploader()
	})

	It("should write the payload as timestamped JSON under the directory", func() {
		writer := warden.NewFileArtifactWriter(warden.FileArtifactConfig{
			Dir:    dir,
			Logger: testLogger(),
		})

		path, err := writer.WriteJSON(ctx, "sync-report", map[string]any{"status": "SUCCESS"})
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Dir(path)).To(Equal(dir))
		Expect(filepath.Base(path)).To(MatchRegexp(`^sync-report-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.json$`))

		content, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(content, &decoded)).To(Succeed())
		Expect(decoded["status"]).To(Equal("SUCCESS"))
	})

	It("should create the directory when missing", func() {
		nested := filepath.Join(dir, "a", "b")
		writer := warden.NewFileArtifactWriter(warden.FileArtifactConfig{
			Dir:    nested,
			Logger: testLogger(),
		})

		_, err := writer.WriteJSON(ctx, "logs", map[string]any{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should mirror the artifact to object storage when configured", func() {
		writer := warden.NewFileArtifactWriter(warden.FileArtifactConfig{
			Dir:      dir,
			Uploader: uploader,
			Bucket:   "warden-reports",
			Prefix:   "reports/",
			Logger:   testLogger(),
		})

		path, err := writer.WriteJSON(ctx, "sync-report", map[string]any{"status": "PARTIAL"})
		Expect(err).NotTo(HaveOccurred())

		key := "warden-reports/reports/" + filepath.Base(path)
		Expect(uploader.Objects).To(HaveKey(key))
	})

	It("should keep the local artifact when mirroring fails", func() {
		uploader.Err = errors.New("bucket unreachable")
		writer := warden.NewFileArtifactWriter(warden.FileArtifactConfig{
			Dir:      dir,
			Uploader: uploader,
			Bucket:   "warden-reports",
			Logger:   testLogger(),
		})

		path, err := writer.WriteJSON(ctx, "sync-report", map[string]any{})
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(BeARegularFile())
	})
})
