package publish

import "context"

// Mirror receives a copy of every published artifact. Mirror failures never
// affect the on-disk artifact.
type Mirror interface {
	Name() string
	Put(ctx context.Context, name, contentType string, body []byte) error
}
