// Package application is the thin seam between transport adapters and
// the dialog layer: one inbound chat turn in, the replies out.
package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/dialog"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/infra/logging"
)

type BotFacade struct {
	dispatcher *dialog.Dispatcher
	log        *zerolog.Logger
}

func NewBotFacade(dispatcher *dialog.Dispatcher, log *zerolog.Logger) *BotFacade {
	return &BotFacade{dispatcher: dispatcher, log: log}
}

// HandleMessage routes one inbound message. Routing errors were
// already turned into a user-visible reply by the dispatcher; here
// they are only logged.
func (f *BotFacade) HandleMessage(ctx context.Context, msg *model.InboundMessage) []model.OutboundMessage {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithUserID(ctx, msg.Identity.UserID)
	ctx = logging.WithConversationID(ctx, msg.Identity.ConversationID)
	defer logging.TraceDuration(logging.With(ctx, f.log), "BotFacade.HandleMessage")()

	out, err := f.dispatcher.Route(ctx, msg)
	if err != nil {
		logging.With(ctx, f.log).Error().Err(err).Msg("message routing degraded")
	}
	return out
}
