package core

import "context"

// TextSender delivers chat text messages.
type TextSender interface {
	SendText(ctx context.Context, recipient, text string) error
}

// VideoSender delivers chat videos.
type VideoSender interface {
	SendVideo(ctx context.Context, recipient, mediaURL, caption string) error
}

// EmailSender delivers email. Attachments missing on disk are skipped by the
// sender rather than failing the delivery.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string, attachments []string) error
}

// Transports bundles the senders available at fire time.
// A nil sender makes deliveries of that kind fail with ErrNoTransport.
type Transports struct {
	Text  TextSender
	Video VideoSender
	Email EmailSender
}

// Sender returns the sender configured for kind, or nil.
func (t Transports) Sender(kind Kind) any {
	switch kind {
	case KindText:
		if t.Text != nil {
			return t.Text
		}
	case KindVideo:
		if t.Video != nil {
			return t.Video
		}
	case KindEmail:
		if t.Email != nil {
			return t.Email
		}
	}
	return nil
}

// Pacer is implemented by senders that throttle outgoing requests. Pace
// blocks until one request may be made. Callers that paced first pass
// WithPaced(ctx) to the send so the turn is not taken twice.
type Pacer interface {
	Pace(ctx context.Context) error
}

type pacedKey struct{}

// WithPaced marks ctx as holding a turn obtained from a Pacer.
func WithPaced(ctx context.Context) context.Context {
	return context.WithValue(ctx, pacedKey{}, true)
}

// Paced reports whether ctx holds a turn obtained from a Pacer.
func Paced(ctx context.Context) bool {
	v, _ := ctx.Value(pacedKey{}).(bool)
	return v
}

// Payload is the closed set of deliverable job variants.
type Payload interface {
	Kind() Kind
	Deliver(ctx context.Context, t Transports) error
	sealed()
}

// TextPayload is a chat text message.
type TextPayload struct {
	Recipient string
	Text      string
}

func (TextPayload) Kind() Kind { return KindText }
func (TextPayload) sealed()    {}

// Deliver sends the message through the text sender.
func (p TextPayload) Deliver(ctx context.Context, t Transports) error {
	if t.Text == nil {
		return ErrNoTransport
	}
	return t.Text.SendText(ctx, p.Recipient, p.Text)
}

// VideoPayload is a chat video referenced by URL.
type VideoPayload struct {
	Recipient string
	MediaURL  string
	Caption   string
}

func (VideoPayload) Kind() Kind { return KindVideo }
func (VideoPayload) sealed()    {}

// Deliver sends the video through the video sender.
func (p VideoPayload) Deliver(ctx context.Context, t Transports) error {
	if t.Video == nil {
		return ErrNoTransport
	}
	return t.Video.SendVideo(ctx, p.Recipient, p.MediaURL, p.Caption)
}

// EmailPayload is an email with optional file attachments.
type EmailPayload struct {
	To          string
	Subject     string
	Body        string
	Attachments []string
}

func (EmailPayload) Kind() Kind { return KindEmail }
func (EmailPayload) sealed()    {}

// Deliver sends the email through the email sender.
func (p EmailPayload) Deliver(ctx context.Context, t Transports) error {
	if t.Email == nil {
		return ErrNoTransport
	}
	return t.Email.SendEmail(ctx, p.To, p.Subject, p.Body, p.Attachments)
}
