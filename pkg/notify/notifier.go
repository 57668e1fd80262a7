// Package notify emails the back-office when the reconciliation pipeline
// opens a task that needs a human. Delivery is best-effort: a failed or
// disabled notifier never blocks the pipeline, it only logs.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
)

// Config holds SMTP configuration. An empty SMTPHost disables sending.
type Config struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	FromName      string
	FromEmail     string
	OperatorInbox string
}

// Notifier sends operator notifications over SMTP
type Notifier struct {
	config Config
}

// NewNotifier creates a new notifier
func NewNotifier(config Config) *Notifier {
	return &Notifier{config: config}
}

// TaskOpened reports a new reconciliation task to the operator inbox
func (n *Notifier) TaskOpened(kind, buyOrder string, amount int64, reason string) {
	if n.config.SMTPHost == "" || n.config.OperatorInbox == "" {
		return
	}

	subject := fmt.Sprintf("[caja] Reconciliation needed: %s (%s)", kind, buyOrder)
	htmlContent, err := n.renderTaskEmail(kind, buyOrder, amount, reason)
	if err != nil {
		log.Printf("notify: failed to render task email: %v", err)
		return
	}

	message := n.buildHTMLEmail(n.config.OperatorInbox, subject, htmlContent)
	if err := n.send(n.config.OperatorInbox, message); err != nil {
		log.Printf("notify: failed to send task email for %s: %v", buyOrder, err)
	}
}

func (n *Notifier) send(to string, message []byte) error {
	addr := fmt.Sprintf("%s:%d", n.config.SMTPHost, n.config.SMTPPort)
	auth := smtp.PlainAuth("", n.config.SMTPUsername, n.config.SMTPPassword, n.config.SMTPHost)

	if err := smtp.SendMail(addr, auth, n.config.FromEmail, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *Notifier) buildHTMLEmail(to, subject, htmlBody string) []byte {
	headers := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
			"\r\n",
		n.config.FromName,
		n.config.FromEmail,
		to,
		subject,
	)
	return append([]byte(headers), []byte(htmlBody)...)
}

const taskTemplate = `
<html>
<body style="font-family: sans-serif;">
  <h2>Reconciliation task opened</h2>
  <p>A payment needs manual attention.</p>
  <table cellpadding="4">
    <tr><td><b>Kind</b></td><td>{{.Kind}}</td></tr>
    <tr><td><b>Buy order</b></td><td>{{.BuyOrder}}</td></tr>
    <tr><td><b>Amount</b></td><td>${{.Amount}}</td></tr>
    <tr><td><b>Reason</b></td><td>{{.Reason}}</td></tr>
  </table>
  <p>Review it in the reconciliation queue.</p>
</body>
</html>`

func (n *Notifier) renderTaskEmail(kind, buyOrder string, amount int64, reason string) (string, error) {
	tmpl, err := template.New("task").Parse(taskTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]interface{}{
		"Kind":     kind,
		"BuyOrder": buyOrder,
		"Amount":   amount,
		"Reason":   reason,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
