package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

// Message is an outgoing email.
type Message struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []string
	Date        time.Time
}

// Build renders m as a MIME message. Attachments that cannot be found are
// logged and left out; the returned list holds the paths that were attached.
func Build(m Message, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m.Date.IsZero() {
		m.Date = time.Now()
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	writeHeader(&buf, "From", m.From)
	writeHeader(&buf, "To", m.To)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&buf, "Date", m.Date.Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	buf.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, nil, err
	}
	qp := quotedprintable.NewWriter(text)
	if _, err := io.WriteString(qp, m.Body); err != nil {
		return nil, nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, nil, err
	}

	attached := make([]string, 0, len(m.Attachments))
	for _, path := range m.Attachments {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			logger.Warn("attachment not found, skipping", "path", path)
			continue
		}
		if err := writeAttachment(mw, path); err != nil {
			return nil, nil, fmt.Errorf("mail: attach %s: %w", path, err)
		}
		attached = append(attached, path)
	}

	if err := mw.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), attached, nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeAttachment(mw *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(ctype, map[string]string{"name": name})},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
	})
	if err != nil {
		return err
	}

	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := io.WriteString(part, enc[:76]+"\r\n"); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err = io.WriteString(part, enc+"\r\n")
	return err
}
