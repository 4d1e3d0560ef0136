package policies

import "context"

// MediaStore persists base64-encoded images and returns durable URLs.
type MediaStore interface {
	UploadBase64(ctx context.Context, key string, encoded string) (string, error)
}
