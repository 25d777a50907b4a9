package release

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when the releaser lacks the credentials it
// needs to submit a release. Callers treat it as a configuration error for
// the whole batch rather than a per-deal failure.
var ErrNotConfigured = errors.New("releaser not configured")

// Releaser moves the escrowed tokens of depositor to destination. A nil
// error means the ledger accepted the release.
type Releaser interface {
	Release(ctx context.Context, depositor, destination string) error
}
