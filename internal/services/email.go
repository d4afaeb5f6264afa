package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"os"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService() *EmailService {
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASS"),
		from:     os.Getenv("EMAIL_FROM"),
	}
}

// SendEmail sends an HTML email. Fire-and-forget relative to payment state: a
// failed send never rolls anything back.
func (s *EmailService) SendEmail(to []string, subject, htmlBody string) error {
	if s.host == "" || s.port == "" || s.user == "" || s.password == "" {
		return fmt.Errorf("SMTP credentials not fully configured")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to[0], subject, htmlBody))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, to, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// ReceiptEmailData feeds the payment receipt template
type ReceiptEmailData struct {
	StudentName   string
	FeeTypeName   string
	Session       string
	Term          string
	Amount        string
	ReceiptNumber string
	Reference     string
	Balance       string
	PaidAt        string
}

// ReminderEmailData feeds the outstanding-fee reminder template
type ReminderEmailData struct {
	GuardianName string
	StudentName  string
	FeeTypeName  string
	Session      string
	Term         string
	TotalAmount  string
	Balance      string
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Payment Receipt</h2>
  <p>We have received a payment for <strong>{{.StudentName}}</strong>.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Receipt No.</strong></td><td>{{.ReceiptNumber}}</td></tr>
    <tr><td><strong>Reference</strong></td><td>{{.Reference}}</td></tr>
    <tr><td><strong>Fee</strong></td><td>{{.FeeTypeName}} ({{.Session}}, {{.Term}})</td></tr>
    <tr><td><strong>Amount Paid</strong></td><td>{{.Amount}}</td></tr>
    <tr><td><strong>Outstanding Balance</strong></td><td>{{.Balance}}</td></tr>
    <tr><td><strong>Date</strong></td><td>{{.PaidAt}}</td></tr>
  </table>
  <p>Thank you.</p>
</body>
</html>`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Fee Payment Reminder</h2>
  <p>Dear {{.GuardianName}},</p>
  <p>This is a reminder that <strong>{{.StudentName}}</strong> has an outstanding
  balance for <strong>{{.FeeTypeName}}</strong> ({{.Session}}, {{.Term}}).</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Total Fee</strong></td><td>{{.TotalAmount}}</td></tr>
    <tr><td><strong>Outstanding Balance</strong></td><td>{{.Balance}}</td></tr>
  </table>
  <p>Kindly complete the payment at your earliest convenience.</p>
</body>
</html>`))

// RenderReceiptEmail renders the HTML receipt body
func RenderReceiptEmail(data ReceiptEmailData) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderReminderEmail renders the HTML reminder body
func RenderReminderEmail(data ReminderEmailData) (string, error) {
	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendReceipt renders and sends the payment receipt
func (s *EmailService) SendReceipt(to string, data ReceiptEmailData) error {
	body, err := RenderReceiptEmail(data)
	if err != nil {
		return err
	}
	return s.SendEmail([]string{to}, "Payment Receipt "+data.ReceiptNumber, body)
}

// SendReminder renders and sends the outstanding-fee reminder
func (s *EmailService) SendReminder(to string, data ReminderEmailData) error {
	body, err := RenderReminderEmail(data)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Fee Reminder: %s (%s, %s)", data.FeeTypeName, data.Session, data.Term)
	return s.SendEmail([]string{to}, subject, body)
}
