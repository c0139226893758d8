package ports

import (
	"context"

	"github.com/layer-3/wallet2fa/core"
)

// EventPublisher notifies other services about completed sign-ins
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, record *core.AuthenticationRecord) error
}
