package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"os"
	"strings"
)

// MailService delivers transactional mail for account confirmation and
// password reset. Delivery runs asynchronously; failures are logged and never
// fail the triggering request.
type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	SiteURL  string
	Enabled  bool
}

func NewMailService() *MailService {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	siteURL := os.Getenv("SITE_URL")
	if siteURL == "" {
		siteURL = "http://localhost:8080"
	}

	enabled := host != "" && port != "" && user != "" && pass != "" && from != ""
	if !enabled {
		log.Println("MailService disabled: missing SMTP environment variables")
	}

	return &MailService{
		Host:     host,
		Port:     port,
		Username: user,
		Password: pass,
		From:     from,
		SiteURL:  siteURL,
		Enabled:  enabled,
	}
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled {
		return
	}

	go func() {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"From: Zheer <%s>\r\n"+
			"Subject: %s\r\n"+
			"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))

		err := smtp.SendMail(addr, auth, s.From, to, msg)
		if err != nil {
			log.Printf("Failed to send email to %v: %v", to, err)
		} else {
			log.Printf("Email sent to %v: %s", to, subject)
		}
	}()
}

var confirmTmpl = template.Must(template.New("confirm").Parse(`
<p>Welcome to Zheer!</p>
<p>To confirm your account, open <a href="{{.Link}}">{{.Link}}</a>.</p>
<p>The link expires in one hour.</p>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`
<p>A password reset was requested for your Zheer account.</p>
<p>To choose a new password, open <a href="{{.Link}}">{{.Link}}</a>.</p>
<p>If you did not request this, you can ignore this mail.</p>
`))

func (s *MailService) render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// SendConfirmationEmail mails the account confirmation link.
func (s *MailService) SendConfirmationEmail(email, token string) {
	body, err := s.render(confirmTmpl, map[string]string{
		"Link": fmt.Sprintf("%s/confirm/%s", s.SiteURL, token),
	})
	if err != nil {
		log.Printf("Error rendering confirmation email: %v", err)
		return
	}
	s.sendAsync([]string{email}, "[Zheer] Confirm your account", body)
}

// SendPasswordResetEmail mails the password reset link.
func (s *MailService) SendPasswordResetEmail(email, token string) {
	body, err := s.render(resetTmpl, map[string]string{
		"Link": fmt.Sprintf("%s/password/reset?token=%s", s.SiteURL, token),
	})
	if err != nil {
		log.Printf("Error rendering reset email: %v", err)
		return
	}
	s.sendAsync([]string{email}, "[Zheer] Reset your password", body)
}
