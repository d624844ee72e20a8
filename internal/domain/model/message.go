package model

import "fmt"

// Identity is the unit of session isolation: one user in one
// conversation. Sessions are never shared across conversations.
type Identity struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

func (id Identity) Key() string {
	return fmt.Sprintf("%s:%s", id.UserID, id.ConversationID)
}

func (id Identity) Valid() bool {
	return id.UserID != "" && id.ConversationID != ""
}

// AttachmentKind classifies an inbound message attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentLink  AttachmentKind = "link"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is a platform-neutral view of whatever the chat platform
// attached to a message: a photo, a shared link, a file.
type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	URL         string         `json:"url"`
	ContentType string         `json:"content_type,omitempty"`
	Name        string         `json:"name,omitempty"`
}

// InboundMessage is one chat turn received from a transport adapter.
type InboundMessage struct {
	Identity    Identity
	Text        string
	Attachments []Attachment
	Platform    string // "telegram", "slack", ...
}

// FirstAttachment returns the first attachment of the given kind.
func (m *InboundMessage) FirstAttachment(kind AttachmentKind) (Attachment, bool) {
	for _, a := range m.Attachments {
		if a.Kind == kind {
			return a, true
		}
	}
	return Attachment{}, false
}

// OutboundMessage is one chat turn to send back. URL, when set, points
// at a published or modified post the adapter may render as a link.
type OutboundMessage struct {
	Text string
	URL  string
}
