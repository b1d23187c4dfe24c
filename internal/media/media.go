package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPayload is returned when an upload carries no data.
var ErrEmptyPayload = errors.New("empty media payload")

// Store accepts an inline image payload and returns a durable URL.
// Payloads are base64 strings, optionally with a data-URL prefix
// ("data:image/png;base64,....").
type Store interface {
	Upload(ctx context.Context, data string) (string, error)
}

// UploadFunc adapts a function to the Store interface.
type UploadFunc func(ctx context.Context, data string) (string, error)

func (f UploadFunc) Upload(ctx context.Context, data string) (string, error) {
	return f(ctx, data)
}

// decodePayload splits an optional data-URL prefix from the payload and
// decodes the base64 body. The returned extension includes the dot.
func decodePayload(data string) ([]byte, string, error) {
	if strings.TrimSpace(data) == "" {
		return nil, "", ErrEmptyPayload
	}

	ext := ".jpg"
	if strings.HasPrefix(data, "data:") {
		header, body, found := strings.Cut(data, ",")
		if !found {
			return nil, "", fmt.Errorf("malformed data url")
		}
		mime := strings.TrimPrefix(header, "data:")
		mime, _, _ = strings.Cut(mime, ";")
		switch mime {
		case "image/png":
			ext = ".png"
		case "image/gif":
			ext = ".gif"
		case "image/webp":
			ext = ".webp"
		}
		data = body
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) == 0 {
		return nil, "", ErrEmptyPayload
	}

	return raw, ext, nil
}
