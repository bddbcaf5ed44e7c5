package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"empty endpoint", Config{Bucket: "contracts"}, true},
		{"empty bucket", Config{Endpoint: "localhost:9002"}, true},
		{"valid config", Config{
			Endpoint:        "localhost:9002",
			Bucket:          "contracts",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestInvalidKeys(t *testing.T) {
	client, err := New(Config{Endpoint: "localhost:9002", Bucket: "contracts"})
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "  ", "leases/"} {
		_, err := client.Stat(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = client.Download(ctx, key, filepath.Join(t.TempDir(), "out"))
		assert.ErrorIs(t, err, ErrInvalidKey)
	}
}

var modified = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeS3 serves GET and HEAD for objects in a single "contracts" bucket.
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/contracts/")
		body, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>` +
					`<Key>` + key + `</Key><BucketName>contracts</BucketName></Error>`))
			}
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte(body))
	}))
}

func fakeClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := New(Config{
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		Bucket:          "contracts",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Region:          "us-east-1",
	})
	require.NoError(t, err)
	return client
}

func TestStat(t *testing.T) {
	srv := fakeS3(t, map[string]string{"leases/flat.txt": "The tenant pays rent."})
	defer srv.Close()
	client := fakeClient(t, srv)

	obj, err := client.Stat(context.Background(), "leases/flat.txt")

	require.NoError(t, err)
	assert.Equal(t, "leases/flat.txt", obj.Key)
	assert.EqualValues(t, len("The tenant pays rent."), obj.Size)
	assert.True(t, modified.Equal(obj.LastModified))

	_, err = client.Stat(context.Background(), "leases/missing.txt")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	srv := fakeS3(t, map[string]string{"leases/flat.txt": "The tenant pays rent."})
	defer srv.Close()
	client := fakeClient(t, srv)

	dest := filepath.Join(t.TempDir(), "work", "temp_file.txt")
	obj, err := client.Download(context.Background(), "leases/flat.txt", dest)

	require.NoError(t, err)
	assert.EqualValues(t, 21, obj.Size)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "The tenant pays rent.", string(data))
}

func TestDownload_MissingObjectLeavesNoFile(t *testing.T) {
	srv := fakeS3(t, nil)
	defer srv.Close()
	client := fakeClient(t, srv)

	dest := filepath.Join(t.TempDir(), "temp_file.pdf")
	_, err := client.Download(context.Background(), "missing.pdf", dest)

	assert.Error(t, err)
	assert.NoFileExists(t, dest)
}

// TestIntegration_Download reads an existing object from a real MinIO.
// Skip if MINIO_TEST_KEY is not set or MinIO is not running.
func TestIntegration_Download(t *testing.T) {
	key := os.Getenv("MINIO_TEST_KEY")
	if key == "" {
		t.Skip("MINIO_TEST_KEY not set, skipping integration test")
	}
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9002"
	}
	bucket := os.Getenv("MINIO_TEST_BUCKET")
	if bucket == "" {
		bucket = "contracts"
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          bucket,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	obj, err := client.Stat(ctx, key)
	if err != nil {
		t.Skipf("MinIO not available, skipping integration test: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "temp_file"+filepath.Ext(key))
	downloaded, err := client.Download(ctx, key, dest)
	require.NoError(t, err)
	assert.Equal(t, obj.Size, downloaded.Size)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, obj.Size, info.Size())
}
