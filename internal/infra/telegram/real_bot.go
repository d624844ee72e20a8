package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/application"
	"github.com/terminalpixel/postrchild/internal/config"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/domain/ports/adapter"
	"github.com/terminalpixel/postrchild/internal/infra/i18n"
	red "github.com/terminalpixel/postrchild/internal/infra/redis"
	"github.com/terminalpixel/postrchild/internal/infra/worker"
)

var _ adapter.ChatAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter polls updates, maps them to platform-neutral
// inbound messages, and fans processing out to a worker pool. Ordering
// within one conversation is the dispatcher's job, not the pool's.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	t           *i18n.Translator
	pool        *worker.Pool
	log         zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, t *i18n.Translator, log zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		rateLimiter: rateLimiter,
		t:           t,
		pool:        worker.NewPool(cfg.Workers, log),
		log:         log.With().Str("component", "telegram").Logger(),
	}, nil
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	r.pool.Start(ctx)
	defer r.pool.Stop()

	r.log.Info().Str("username", r.bot.Self.UserName).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-updates:
			update := up
			if err := r.pool.Submit(func(ctx context.Context) error {
				return r.handleUpdate(ctx, update)
			}); err != nil {
				r.log.Warn().Err(err).Msg("update dropped")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	tgMsg := up.Message
	if tgMsg == nil {
		tgMsg = up.EditedMessage
	}
	if tgMsg == nil || tgMsg.From == nil {
		return nil
	}

	id := model.Identity{
		UserID:         strconv.FormatInt(tgMsg.From.ID, 10),
		ConversationID: strconv.FormatInt(tgMsg.Chat.ID, 10),
	}

	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserMessageKey(id.UserID), r.cfg.RateLimit, r.cfg.RateLimitWindow)
		if err != nil {
			r.log.Error().Err(err).Msg("rate limiter degraded, allowing message")
		} else if !allowed {
			return r.Send(ctx, id, model.OutboundMessage{Text: r.t.T("rate_limited")})
		}
	}

	msg := r.toInbound(tgMsg, id)
	for _, out := range r.facade.HandleMessage(ctx, msg) {
		if err := r.Send(ctx, id, out); err != nil {
			return err
		}
	}
	return nil
}

// toInbound flattens a telegram message into the neutral shape the
// dialogs consume: text (or caption), plus image and link attachments.
func (r *RealTelegramBotAdapter) toInbound(tgMsg *tgbotapi.Message, id model.Identity) *model.InboundMessage {
	text := tgMsg.Text
	if text == "" {
		text = tgMsg.Caption
	}
	// "/post@botname hi" arrives in group chats; the suffix is noise.
	if r.cfg.Username != "" {
		text = strings.Replace(text, "@"+r.cfg.Username, "", 1)
	}

	msg := &model.InboundMessage{
		Identity: id,
		Text:     text,
		Platform: "telegram",
	}

	if len(tgMsg.Photo) > 0 {
		// Sizes arrive smallest first; the original is last.
		best := tgMsg.Photo[len(tgMsg.Photo)-1]
		if url, err := r.bot.GetFileDirectURL(best.FileID); err == nil {
			msg.Attachments = append(msg.Attachments, model.Attachment{
				Kind:        model.AttachmentImage,
				URL:         url,
				ContentType: "image/jpeg",
			})
		} else {
			r.log.Warn().Err(err).Msg("resolving photo file url")
		}
	}
	if doc := tgMsg.Document; doc != nil {
		if url, err := r.bot.GetFileDirectURL(doc.FileID); err == nil {
			kind := model.AttachmentFile
			if strings.HasPrefix(doc.MimeType, "image/") {
				kind = model.AttachmentImage
			}
			msg.Attachments = append(msg.Attachments, model.Attachment{
				Kind:        kind,
				URL:         url,
				ContentType: doc.MimeType,
				Name:        doc.FileName,
			})
		}
	}
	for _, a := range linkEntities(text, tgMsg.Entities) {
		msg.Attachments = append(msg.Attachments, a)
	}
	return msg
}

// linkEntities pulls shared URLs out of the message entities. A bare
// URL message is how users hand the bot a post to interact with.
// Entity offsets and lengths count UTF-16 code units, so the text is
// re-encoded before slicing.
func linkEntities(text string, entities []tgbotapi.MessageEntity) []model.Attachment {
	var out []model.Attachment
	units := utf16.Encode([]rune(text))
	for _, e := range entities {
		switch e.Type {
		case "url":
			if e.Offset >= 0 && e.Length > 0 && e.Offset+e.Length <= len(units) {
				out = append(out, model.Attachment{
					Kind: model.AttachmentLink,
					URL:  string(utf16.Decode(units[e.Offset : e.Offset+e.Length])),
				})
			}
		case "text_link":
			if e.URL != "" {
				out = append(out, model.Attachment{Kind: model.AttachmentLink, URL: e.URL})
			}
		}
	}
	return out
}

// Send delivers one reply to the conversation.
func (r *RealTelegramBotAdapter) Send(_ context.Context, id model.Identity, msg model.OutboundMessage) error {
	chatID, err := strconv.ParseInt(id.ConversationID, 10, 64)
	if err != nil {
		return err
	}
	out := tgbotapi.NewMessage(chatID, msg.Text)
	_, err = r.bot.Send(out)
	return err
}
