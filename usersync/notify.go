package usersync

import (
	"strings"

	"gopkg.in/gomail.v2"
)

const (
	mailResultSuccess = "Success"
	mailResultFailure = "Failure"

	defaultMailReplyTo = "noreply@netlab.no"
	defaultMailSubject = "Status report mail from user import task - {0} - Result: {1}."
)

// IMailSender sends one message. The SMTP client implements it for real
// runs; tests substitute a recorder.
type IMailSender interface {
	Send(from string, to string, subject string, body string) error
}

// SmtpSender sends through an SMTP relay via gomail.
type SmtpSender struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (s *SmtpSender) Send(from string, to string, subject string, body string) error {
	var m = gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	var d = gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	return d.DialAndSend(m)
}

// SendRunReport mails the outcome of one run: the status block plus the
// error log on failure, or a success line plus the status block. The
// subject template carries two tokens, {0} for the run identifier and {1}
// for Success/Failure. Mail problems are appended to the report, never
// raised; a finished run's outcome must survive a broken mail relay.
func SendRunReport(sender IMailSender, cfg *ImportConfig, report *RunReport, identifier string) {
	if cfg.MailRecipients == "" {
		report.AddError("Error", "The 'Mail Recipients' setting must be defined. Please provide a recipient address for the mail.")
		return
	}
	var replyTo = cfg.MailReplyTo
	if replyTo == "" {
		replyTo = defaultMailReplyTo
		report.AddError("Error", "The 'Mail Reply To' setting must be defined. Please provide a reply-to address for the mail.")
	}
	var subject = cfg.MailSubject
	if subject == "" {
		subject = defaultMailSubject
	}

	var result string
	var body string
	if errorText := report.ErrorText(); errorText == "" {
		result = mailResultSuccess
		body = "The import completed successfully.\r\n\r\nStatus:\r\n" + report.StatusText()
	} else {
		result = mailResultFailure
		body = "The import failed.\r\n\r\nStatus:\r\n" + report.StatusText() + "\r\n\r\n" + errorText
	}
	subject = strings.NewReplacer("{0}", identifier, "{1}", result).Replace(subject)

	if cfg.DoNotSendMailOnSuccess && result == mailResultSuccess {
		return
	}
	if err := sender.Send(replyTo, cfg.MailRecipients, subject, body); err != nil {
		report.AddError("Error", "Sending the status report mail failed: "+err.Error())
	}
}
