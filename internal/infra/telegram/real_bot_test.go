package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/terminalpixel/postrchild/internal/domain/model"
)

func TestLinkEntities(t *testing.T) {
	text := "look at https://example.com/post and this"
	entities := []tgbotapi.MessageEntity{
		{Type: "url", Offset: 8, Length: 24},
		{Type: "text_link", Offset: 37, Length: 4, URL: "https://hidden.example/"},
		{Type: "bold", Offset: 0, Length: 4},
	}

	got := linkEntities(text, entities)
	if len(got) != 2 {
		t.Fatalf("attachments = %v", got)
	}
	if got[0].Kind != model.AttachmentLink || got[0].URL != "https://example.com/post" {
		t.Fatalf("url entity = %+v", got[0])
	}
	if got[1].URL != "https://hidden.example/" {
		t.Fatalf("text_link entity = %+v", got[1])
	}
}

func TestLinkEntitiesAfterSurrogatePair(t *testing.T) {
	// The party popper is one rune but two UTF-16 units; telegram
	// counts the latter.
	text := "\U0001F389 https://example.com/post"
	entities := []tgbotapi.MessageEntity{
		{Type: "url", Offset: 3, Length: 24},
	}

	got := linkEntities(text, entities)
	if len(got) != 1 {
		t.Fatalf("attachments = %v", got)
	}
	if got[0].URL != "https://example.com/post" {
		t.Fatalf("url = %q", got[0].URL)
	}
}

func TestLinkEntitiesOutOfRangeIgnored(t *testing.T) {
	got := linkEntities("short", []tgbotapi.MessageEntity{{Type: "url", Offset: 2, Length: 50}})
	if len(got) != 0 {
		t.Fatalf("attachments = %v", got)
	}
}
