package adapter

import (
	"context"

	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// ChatAdapter is the outbound half of a chat transport. The inbound
// half calls application.BotFacade directly; this port only renders
// replies back into the platform.
type ChatAdapter interface {
	Send(ctx context.Context, id model.Identity, msg model.OutboundMessage) error
}
