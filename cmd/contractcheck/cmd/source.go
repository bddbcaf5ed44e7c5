package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mfenderov/contractcheck/internal/config"
	"github.com/mfenderov/contractcheck/internal/extract"
	"github.com/mfenderov/contractcheck/internal/storage"
)

const tempName = "temp_file"

var (
	errUnsupportedObject = errors.New("unsupported file format")
	errObjectTooLarge    = errors.New("object exceeds the upload limit")
)

// source names where a contract comes from. Exactly one field is set.
type source struct {
	File   string
	URL    string
	Object string
}

func (s source) validate() error {
	set := 0
	for _, v := range []string{s.File, s.URL, s.Object} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of a file argument, --url or --object is required")
	}
	return nil
}

// stage makes the contract available as a local file. Remote sources are
// written to temp_file.<ext> in the work dir; cleanup removes them.
func stage(ctx context.Context, cfg config.Config, src source) (string, func(), error) {
	if err := src.validate(); err != nil {
		return "", nil, err
	}

	if src.File != "" {
		return src.File, func() {}, nil
	}

	var path string
	switch {
	case src.URL != "":
		doc, err := newFetcher(cfg).Fetch(ctx, src.URL)
		if err != nil {
			return "", nil, err
		}
		path = tempPath(cfg, doc.Format)
		if err := os.WriteFile(path, []byte(doc.Content), 0o600); err != nil {
			return "", nil, fmt.Errorf("failed to write fetched page: %w", err)
		}
		slog.Debug("fetched contract", "url", src.URL, "title", doc.Title, "path", path)

	case src.Object != "":
		client, err := newStorage(cfg)
		if err != nil {
			return "", nil, err
		}
		path, err = stageObject(ctx, client, cfg, src.Object)
		if err != nil {
			return "", nil, err
		}
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

// objectStore is the part of storage.Client that staging needs.
type objectStore interface {
	Stat(ctx context.Context, key string) (*storage.Object, error)
	Download(ctx context.Context, key, dest string) (*storage.Object, error)
	Bucket() string
}

// stageObject downloads key to temp_file.<ext> after checking that the
// extension is one the extractor reads and that the object fits the upload limit.
func stageObject(ctx context.Context, store objectStore, cfg config.Config, key string) (string, error) {
	format := extract.Format(key)
	if !extract.Supported(format) {
		return "", fmt.Errorf("%w: %s", errUnsupportedObject, key)
	}

	obj, err := store.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	if limit := cfg.Server.MaxUploadBytes; limit > 0 && obj.Size > limit {
		return "", fmt.Errorf("%w: %s is %d bytes, limit is %d", errObjectTooLarge, key, obj.Size, limit)
	}

	path := tempPath(cfg, format)
	if _, err := store.Download(ctx, key, path); err != nil {
		return "", err
	}
	slog.Debug("downloaded contract", "bucket", store.Bucket(), "key", key, "size", obj.Size, "path", path)
	return path, nil
}

func tempPath(cfg config.Config, format string) string {
	return filepath.Join(cfg.Server.WorkDir, tempName+"."+format)
}

// failureError turns a user-facing "Error: ..." message into an error that
// main prints with its own "Error:" prefix.
func failureError(message string) error {
	return errors.New(strings.TrimPrefix(message, "Error: "))
}
