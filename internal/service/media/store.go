package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/pkg/errors"
)

// Store keeps fetched media for the lifetime of a session. A non-positive
// ttl stores without expiry.
type Store interface {
	Put(ctx context.Context, obj domain.MediaObject, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.MediaObject, error)
	// Touch restarts the expiry of id from now.
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// URLPath is the route media is served from.
const URLPath = "/media/"

// NewID returns a fresh media identifier.
func NewID() string {
	return uuid.NewString()
}

// URLFor builds the local URL for id. baseURL may be empty for relative URLs.
func URLFor(baseURL, id string) string {
	return baseURL + URLPath + id
}

func notFound(id string) error {
	return errors.NewNotFoundError("media not found", "media", id)
}
