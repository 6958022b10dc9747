package pipeline

import (
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/normalize"
)

// Payload is the content of one message. Exactly one variant is carried per
// event: Text, Image, Audio or File.
type Payload interface {
	Type() data.MessageType
	apply(m *data.Message)
	preview() string
}

// Text is a plain text message.
type Text struct {
	Body string
}

// Image is an image URL with an optional caption.
type Image struct {
	URL     string
	Caption string
}

// Audio is an audio URL with an optional caption.
type Audio struct {
	URL     string
	Caption string
}

// File is a file URL with its display name and an optional caption.
type File struct {
	URL     string
	Name    string
	Caption string
}

func (Text) Type() data.MessageType  { return data.TypeText }
func (Image) Type() data.MessageType { return data.TypeImage }
func (Audio) Type() data.MessageType { return data.TypeAudio }
func (File) Type() data.MessageType  { return data.TypeFile }

func (p Text) apply(m *data.Message) { m.Text = p.Body }

func (p Image) apply(m *data.Message) { m.Image, m.Text = p.URL, p.Caption }

func (p Audio) apply(m *data.Message) { m.Audio, m.Text = p.URL, p.Caption }

func (p File) apply(m *data.Message) { m.File, m.FileName, m.Text = p.URL, p.Name, p.Caption }

func (p Text) preview() string { return p.Body }

func (p Image) preview() string { return orDefault(p.Caption, "Sent a photo") }

func (p Audio) preview() string { return orDefault(p.Caption, "Sent a voice note") }

func (p File) preview() string {
	if p.Caption != "" {
		return p.Caption
	}
	if p.Name != "" {
		return "Sent " + p.Name
	}
	return "Sent a file"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Event is one validated inbound message event.
type Event struct {
	ThreadID  int64
	Payload   Payload
	ClientRef string
}

// ParseEvent validates a transport event and builds the payload variant named
// by its message type. A missing type means text.
func ParseEvent(req *chatv1.ChatStreamRequest) (Event, error) {
	if req == nil {
		return Event{}, errs.Validation("empty event")
	}
	ev := Event{ThreadID: req.ThreadID, ClientRef: req.ClientRef}
	if req.ThreadID <= 0 {
		return ev, errs.Validation("threadId is required")
	}

	kind := req.MessageType
	if kind == "" {
		kind = data.TypeText
	}
	text := normalize.Text(req.Text)

	switch kind {
	case data.TypeText:
		if text == "" {
			return ev, errs.Validation("text is required")
		}
		ev.Payload = Text{Body: text}
	case data.TypeImage:
		if req.Image == "" {
			return ev, errs.Validation("image is required for image messages")
		}
		ev.Payload = Image{URL: req.Image, Caption: text}
	case data.TypeAudio:
		if req.Audio == "" {
			return ev, errs.Validation("audio is required for audio messages")
		}
		ev.Payload = Audio{URL: req.Audio, Caption: text}
	case data.TypeFile:
		if req.File == "" {
			return ev, errs.Validation("file is required for file messages")
		}
		ev.Payload = File{URL: req.File, Name: normalize.Text(req.FileName), Caption: text}
	default:
		return ev, errs.Validation("unknown messageType %q", kind)
	}
	return ev, nil
}
