package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func validText() *core.Job {
	return &core.Job{
		Kind:          core.KindText,
		Recipient:     "grp1",
		Content:       "hello",
		ScheduledTime: now.Add(time.Hour),
	}
}

func validVideo() *core.Job {
	return &core.Job{
		Kind:          core.KindVideo,
		Recipient:     "grp1",
		MediaURL:      strPtr("https://cdn.example.com/clip.mp4"),
		Caption:       strPtr("look"),
		ScheduledTime: now.Add(time.Hour),
	}
}

func validEmail() *core.Job {
	return &core.Job{
		Kind:          core.KindEmail,
		Recipient:     "user@example.com",
		Subject:       "Weekly report",
		Content:       core.EmailContent("Weekly report", "numbers inside"),
		Attachments:   []string{"/srv/report.pdf"},
		ScheduledTime: now.Add(time.Hour),
	}
}

func assertInvalid(t *testing.T, job *core.Job, field string) {
	t.Helper()
	err := ValidateJob(job, now)
	if assert.ErrorIs(t, err, core.ErrValidation) {
		assert.Equal(t, field, err.(*core.ValidationError).Field)
	}
}

func TestValidateJob_Valid(t *testing.T) {
	assert.NoError(t, ValidateJob(validText(), now))
	assert.NoError(t, ValidateJob(validVideo(), now))
	assert.NoError(t, ValidateJob(validEmail(), now))
}

func TestValidateJob_VideoCaptionOptional(t *testing.T) {
	job := validVideo()
	job.Caption = nil
	assert.NoError(t, ValidateJob(job, now))
}

func TestValidateJob_EmailWithoutAttachments(t *testing.T) {
	job := validEmail()
	job.Attachments = nil
	assert.NoError(t, ValidateJob(job, now))
}

func TestValidateJob_Nil(t *testing.T) {
	assert.ErrorIs(t, ValidateJob(nil, now), core.ErrValidation)
}

func TestValidateJob_ScheduledTime(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
	}{
		{"zero", time.Time{}},
		{"past", now.Add(-time.Minute)},
		{"exactly now", now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validText()
			job.ScheduledTime = tt.at
			assertInvalid(t, job, "scheduled_time")
		})
	}
}

func TestValidateJob_UnknownKind(t *testing.T) {
	job := validText()
	job.Kind = "sms"
	assertInvalid(t, job, "kind")
}

func TestValidateJob_Recipient(t *testing.T) {
	job := validText()
	job.Recipient = "   "
	assertInvalid(t, job, "recipient")

	job = validText()
	job.Recipient = strings.Repeat("g", MaxRecipientLength+1)
	assertInvalid(t, job, "recipient")
}

func TestValidateJob_EmailRecipientMustBeAddress(t *testing.T) {
	for _, r := range []string{"not-an-email", "Bob <bob@example.com>", "bob@"} {
		job := validEmail()
		job.Recipient = r
		assertInvalid(t, job, "recipient")
	}
}

func TestValidateJob_TextRequiresContent(t *testing.T) {
	job := validText()
	job.Content = ""
	assertInvalid(t, job, "content")
}

func TestValidateJob_ContentTooLarge(t *testing.T) {
	job := validText()
	job.Content = strings.Repeat("x", MaxContentLength+1)
	assertInvalid(t, job, "content")
}

func TestValidateJob_VideoMediaURL(t *testing.T) {
	tests := []struct {
		name string
		url  *string
	}{
		{"missing", nil},
		{"empty", strPtr("")},
		{"not http", strPtr("ftp://example.com/v.mp4")},
		{"no host", strPtr("https:///v.mp4")},
		{"too long", strPtr("https://example.com/" + strings.Repeat("v", MaxMediaURLLength))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validVideo()
			job.MediaURL = tt.url
			assertInvalid(t, job, "media_url")
		})
	}
}

func TestValidateJob_VideoCaptionTooLong(t *testing.T) {
	job := validVideo()
	job.Caption = strPtr(strings.Repeat("c", MaxCaptionLength+1))
	assertInvalid(t, job, "caption")
}

func TestValidateJob_EmailSubject(t *testing.T) {
	job := validEmail()
	job.Subject = ""
	job.Content = core.EmailContent("", "body")
	assertInvalid(t, job, "subject")

	job = validEmail()
	job.Subject = "two\nlines"
	job.Content = core.EmailContent(job.Subject, "body")
	assertInvalid(t, job, "subject")
}

func TestValidateJob_EmailRequiresBody(t *testing.T) {
	job := validEmail()
	job.Content = core.EmailContent(job.Subject, "  ")
	assertInvalid(t, job, "content")
}

func TestValidateJob_EmailAttachments(t *testing.T) {
	job := validEmail()
	job.Attachments = make([]string, MaxAttachments+1)
	for i := range job.Attachments {
		job.Attachments[i] = "/tmp/a"
	}
	assertInvalid(t, job, "attachments")

	job = validEmail()
	job.Attachments = []string{"/tmp/a", " "}
	assertInvalid(t, job, "attachments")
}

func TestTruncateForDisplay(t *testing.T) {
	assert.Equal(t, "short", TruncateForDisplay("short"))

	exact := strings.Repeat("a", DisplayContentLength)
	assert.Equal(t, exact, TruncateForDisplay(exact))

	long := strings.Repeat("b", DisplayContentLength+5)
	got := TruncateForDisplay(long)
	assert.Equal(t, strings.Repeat("b", DisplayContentLength)+"...", got)
}

func TestTruncateForDisplay_CountsRunes(t *testing.T) {
	long := strings.Repeat("é", DisplayContentLength+1)
	got := TruncateForDisplay(long)
	assert.Equal(t, strings.Repeat("é", DisplayContentLength)+"...", got)
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "normal message",
			input:    "connection refused",
			expected: "connection refused",
		},
		{
			name:     "message with newlines",
			input:    "error on\nline 2",
			expected: "error on\nline 2",
		},
		{
			name:     "message with null bytes",
			input:    "error\x00with\x00nulls",
			expected: "errorwithnulls",
		},
		{
			name:     "empty message",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeErrorMessage(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSanitizeErrorMessage_Truncation(t *testing.T) {
	longMessage := strings.Repeat("a", 5000)
	result := SanitizeErrorMessage(longMessage)

	assert.LessOrEqual(t, len(result), MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(result, "..."))
}

func TestClampAttempts(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{5, 5},
		{20, 20},
		{21, 20},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClampAttempts(tt.input), "ClampAttempts(%d)", tt.input)
	}
}
