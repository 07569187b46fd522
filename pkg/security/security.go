package security

import (
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
)

// Security limits and configuration
const (
	// MaxRecipientLength is the maximum length for chat ids and email addresses
	MaxRecipientLength = 255

	// MaxContentLength is the maximum size in bytes of a job's content (64KB)
	MaxContentLength = 64 << 10

	// MaxSubjectLength is the RFC 5322 line length limit for a subject
	MaxSubjectLength = 998

	// MaxMediaURLLength is the maximum length for video URLs
	MaxMediaURLLength = 500

	// MaxCaptionLength is the maximum length for video captions
	MaxCaptionLength = 4096

	// MaxAttachments is the maximum number of attachments per email
	MaxAttachments = 20

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxStorageAttempts is the hard limit for storage write attempts
	MaxStorageAttempts = 20

	// DisplayContentLength is how much content listings show before truncating
	DisplayContentLength = 100
)

// ValidateJob checks a job before it is persisted. The scheduled time must be
// strictly after now and the fields required by the job's kind must be present.
func ValidateJob(job *core.Job, now time.Time) error {
	if job == nil {
		return &core.ValidationError{Reason: "job is nil"}
	}
	if !job.Kind.Valid() {
		return &core.ValidationError{Field: "kind", Reason: "must be one of chat_text, chat_video, email"}
	}
	if err := validateRecipient(job); err != nil {
		return err
	}
	if job.ScheduledTime.IsZero() {
		return &core.ValidationError{Field: "scheduled_time", Reason: "is required"}
	}
	if !job.ScheduledTime.After(now) {
		return &core.ValidationError{Field: "scheduled_time", Reason: "must be in the future"}
	}
	if len(job.Content) > MaxContentLength {
		return &core.ValidationError{Field: "content", Reason: "exceeds size limit"}
	}

	switch job.Kind {
	case core.KindText:
		if strings.TrimSpace(job.Content) == "" {
			return &core.ValidationError{Field: "content", Reason: "is required"}
		}
	case core.KindVideo:
		return validateVideo(job)
	case core.KindEmail:
		return validateEmail(job)
	}
	return nil
}

func validateRecipient(job *core.Job) error {
	r := strings.TrimSpace(job.Recipient)
	if r == "" {
		return &core.ValidationError{Field: "recipient", Reason: "is required"}
	}
	if len(r) > MaxRecipientLength {
		return &core.ValidationError{Field: "recipient", Reason: "too long"}
	}
	if job.Kind == core.KindEmail {
		addr, err := mail.ParseAddress(r)
		if err != nil || addr.Address != r {
			return &core.ValidationError{Field: "recipient", Reason: "must be a plain email address"}
		}
	}
	return nil
}

func validateVideo(job *core.Job) error {
	if job.MediaURL == nil || strings.TrimSpace(*job.MediaURL) == "" {
		return &core.ValidationError{Field: "media_url", Reason: "is required"}
	}
	if len(*job.MediaURL) > MaxMediaURLLength {
		return &core.ValidationError{Field: "media_url", Reason: "too long"}
	}
	u, err := url.Parse(*job.MediaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &core.ValidationError{Field: "media_url", Reason: "must be an http(s) URL"}
	}
	if job.Caption != nil && utf8.RuneCountInString(*job.Caption) > MaxCaptionLength {
		return &core.ValidationError{Field: "caption", Reason: "too long"}
	}
	return nil
}

func validateEmail(job *core.Job) error {
	if strings.TrimSpace(job.Subject) == "" {
		return &core.ValidationError{Field: "subject", Reason: "is required"}
	}
	if len(job.Subject) > MaxSubjectLength {
		return &core.ValidationError{Field: "subject", Reason: "too long"}
	}
	if strings.ContainsAny(job.Subject, "\r\n") {
		return &core.ValidationError{Field: "subject", Reason: "must be a single line"}
	}
	if strings.TrimSpace(core.EmailBody(job.Subject, job.Content)) == "" {
		return &core.ValidationError{Field: "content", Reason: "is required"}
	}
	if len(job.Attachments) > MaxAttachments {
		return &core.ValidationError{Field: "attachments", Reason: "too many attachments"}
	}
	for _, p := range job.Attachments {
		if strings.TrimSpace(p) == "" {
			return &core.ValidationError{Field: "attachments", Reason: "contains an empty path"}
		}
	}
	return nil
}

// TruncateForDisplay shortens content to DisplayContentLength characters,
// appending "..." when anything was cut.
func TruncateForDisplay(content string) string {
	if utf8.RuneCountInString(content) <= DisplayContentLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:DisplayContentLength]) + "..."
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampAttempts ensures a storage attempt count is within [1, MaxStorageAttempts]
func ClampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxStorageAttempts {
		return MaxStorageAttempts
	}
	return n
}
