package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
)

// UploadFrames publishes the given frame files under prefix and returns their
// URLs in the same order. It stops at the first failed upload.
func UploadFrames(ctx context.Context, store Storage, prefix string, files []string) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return urls, fmt.Errorf("context cancelled: %w", err)
		}

		url, err := uploadFile(ctx, store, path.Join(prefix, filepath.Base(file)), file)
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func uploadFile(ctx context.Context, store Storage, key, file string) (string, error) {
	f, err := os.Open(file) // #nosec G304 - path comes from the extractor's output list
	if err != nil {
		return "", fmt.Errorf("open frame %s: %w", file, err)
	}
	defer func() { _ = f.Close() }()

	url, err := store.UploadToS3(ctx, key, f, contentType(file))
	if err != nil {
		return "", fmt.Errorf("upload frame %s: %w", file, err)
	}
	return url, nil
}

// contentType maps frame extensions to MIME types.
func contentType(file string) string {
	switch ext := filepath.Ext(file); ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
