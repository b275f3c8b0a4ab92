package mail

import (
	"bytes"
	"embed"
	"fmt"
	"github.com/emersion/go-message/mail"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Feedback is what the sender of a list learns about its import.
type Feedback struct {
	Subject      string
	FileName     string
	Imported     int
	AddedPlayers []string
	Err          string
}

type feedbackSender interface {
	send(box *connectionCredentials, to string, feedback Feedback) error
}

type smtpSender struct{}

func (smtpSender) send(box *connectionCredentials, to string, feedback Feedback) error {
	host := smtpHost(box.hostname)

	body, err := composeFeedback(box.username, to, feedback, time.Now())
	if err != nil {
		return fmt.Errorf("composeFeedback failed: %w", err)
	}

	auth := smtp.PlainAuth("", box.username, box.password, host)
	if err := smtp.SendMail(net.JoinHostPort(host, box.smtpPort), auth, box.username, []string{to}, body); err != nil {
		return fmt.Errorf("smtp.SendMail failed: %w", err)
	}

	return nil
}

// Mail providers publish SMTP next to IMAP: imap.example.com -> smtp.example.com.
func smtpHost(imapHost string) string {
	return strings.Replace(imapHost, "imap", "smtp", 1)
}

// composeFeedback renders the answer letter, positive or negative depending on the import outcome.
func composeFeedback(from, to string, feedback Feedback, now time.Time) ([]byte, error) {
	name := "positiveFeedback.html"
	if feedback.Err != "" {
		name = "negativeFeedback.html"
	}

	html := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(html, name, feedback); err != nil {
		return nil, fmt.Errorf("templates.ExecuteTemplate failed: %w", err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject("Re: " + feedback.Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	buf := new(bytes.Buffer)
	w, err := mail.CreateSingleInlineWriter(buf, h)
	if err != nil {
		return nil, fmt.Errorf("mail.CreateSingleInlineWriter failed: %w", err)
	}
	if _, err := w.Write(html.Bytes()); err != nil {
		return nil, fmt.Errorf("w.Write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("w.Close failed: %w", err)
	}

	return buf.Bytes(), nil
}
