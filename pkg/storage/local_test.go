package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/paperlane/paperlane/pkg/storage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("local reader", func() {
	var (
		root   string
		reader *storage.LocalReader
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(root, "documents"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(root, "documents", "a.docx"), []byte("content"), 0o600)).To(Succeed())
		reader = storage.NewLocalReader(root)
	})

	It("opens an existing file", func() {
		rc, err := reader.Open(context.TODO(), "documents/a.docx")
		Expect(err).To(BeNil())
		defer rc.Close()

		data, err := io.ReadAll(rc)
		Expect(err).To(BeNil())
		Expect(string(data)).To(Equal("content"))
	})

	It("reports a missing file", func() {
		_, err := reader.Open(context.TODO(), "documents/missing.docx")
		Expect(errors.Is(err, storage.ErrObjectNotFound)).To(BeTrue())
	})

	It("does not leave the root", func() {
		outside := filepath.Join(filepath.Dir(root), "outside.txt")
		_ = os.WriteFile(outside, []byte("secret"), 0o600)
		defer os.Remove(outside)

		_, err := reader.Open(context.TODO(), "../outside.txt")
		Expect(errors.Is(err, storage.ErrObjectNotFound)).To(BeTrue())
	})
})
