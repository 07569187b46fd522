package core

import (
	"strings"
	"time"
)

// Kind identifies which transport delivers a job.
type Kind string

const (
	KindText  Kind = "chat_text"
	KindVideo Kind = "chat_video"
	KindEmail Kind = "email"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindVideo, KindEmail:
		return true
	}
	return false
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusSent      JobStatus = "sent"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Job is a single scheduled send request.
type Job struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	Kind          Kind      `gorm:"index;size:20;not null"`
	Recipient     string    `gorm:"size:255;not null"`
	Content       string    `gorm:"type:text;not null"`
	Subject       string    `gorm:"size:998"`
	MediaURL      *string   `gorm:"size:500"`
	Caption       *string   `gorm:"type:text"`
	Attachments   []string  `gorm:"serializer:json"`
	ScheduledTime time.Time `gorm:"index;not null"`
	Status        JobStatus `gorm:"index;size:20;default:'pending'"`
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
	CompletedAt   *time.Time
}

// TableName pins the table name independently of the struct name.
func (Job) TableName() string { return "scheduled_jobs" }

// EmailContent folds the subject into the stored content of an email job.
func EmailContent(subject, body string) string {
	return "Subject: " + subject + "\n\n" + body
}

// EmailBody recovers the body from content produced by EmailContent.
func EmailBody(subject, content string) string {
	return strings.TrimPrefix(content, "Subject: "+subject+"\n\n")
}

// Payload returns the delivery variant for the job's kind.
func (j *Job) Payload() (Payload, error) {
	switch j.Kind {
	case KindText:
		return TextPayload{Recipient: j.Recipient, Text: j.Content}, nil
	case KindVideo:
		p := VideoPayload{Recipient: j.Recipient}
		if j.MediaURL != nil {
			p.MediaURL = *j.MediaURL
		}
		if j.Caption != nil {
			p.Caption = *j.Caption
		}
		return p, nil
	case KindEmail:
		return EmailPayload{
			To:          j.Recipient,
			Subject:     j.Subject,
			Body:        EmailBody(j.Subject, j.Content),
			Attachments: append([]string(nil), j.Attachments...),
		}, nil
	}
	return nil, &ValidationError{Field: "kind", Reason: "unknown kind " + string(j.Kind)}
}
