package email

import (
	"fmt"
	"net/smtp"
	"os"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	contact  string
}

// NewEmailService reads SMTP settings from the environment. When the host is
// missing the service is disabled and sends become no-ops, so local setups
// work without a mail server.
func NewEmailService() *EmailService {
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
		contact:  os.Getenv("CONTACT_EMAIL"),
	}
}

func (e *EmailService) Enabled() bool {
	return e.host != "" && e.from != "" && e.contact != ""
}

// SendContactEmail forwards a contact form submission to the site's contact
// inbox.
func (e *EmailService) SendContactEmail(name, fromEmail, phone, subject, body string) error {
	if !e.Enabled() {
		return nil
	}

	if subject == "" {
		subject = "New contact form message"
	}

	content := fmt.Sprintf(`New message from the contact form.

Name: %s
Email: %s
Phone: %s

%s
`, name, fromEmail, phone, body)

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Reply-To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.from, e.contact, fromEmail, subject, content)

	auth := smtp.PlainAuth("", e.user, e.password, e.host)
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.from, []string{e.contact}, []byte(message)); err != nil {
		return fmt.Errorf("error sending contact email: %v", err)
	}

	return nil
}
