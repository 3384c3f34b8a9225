package gcs_test

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/web-archiver/internal/storage/gcs"
)

func newTestDocument(t *testing.T, handler http.Handler) *gcs.Document {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	doc, err := gcs.New(client, gcs.Config{Bucket: "test-bucket", Object: "archives/web-archiver.md"})
	require.NoError(t, err)
	return doc
}

func TestParseLocation(t *testing.T) {
	cfg, err := gcs.ParseLocation("gs://bucket/path/to/store.md")
	require.NoError(t, err)
	assert.Equal(t, gcs.Config{Bucket: "bucket", Object: "path/to/store.md"}, cfg)

	for _, bad := range []string{"bucket/store.md", "gs://bucket", "gs://bucket/", "gs:///store.md"} {
		_, err := gcs.ParseLocation(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b", Object: "o"})
	assert.Error(t, err)
}

func TestDocumentWrite(t *testing.T) {
	payload := "# Web Archiver\n"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "archives/web-archiver.md", r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), payload)
		assert.Contains(t, string(body), "text/markdown")

		fmt.Fprintln(w, `{ "name": "archives/web-archiver.md", "bucket": "test-bucket" }`)
	})

	doc := newTestDocument(t, handler)
	require.NoError(t, doc.Write(context.Background(), []byte(payload)))
	assert.Equal(t, "gs://test-bucket/archives/web-archiver.md", doc.Location())
}

func TestDocumentWriteError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	doc := newTestDocument(t, handler)
	assert.Error(t, doc.Write(context.Background(), []byte("x")))
}

func TestDocumentReadMissing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	doc := newTestDocument(t, handler)
	_, err := doc.Read(context.Background())
	require.ErrorIs(t, err, fs.ErrNotExist)
}
