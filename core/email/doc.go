// Package email provides email sending functionality with support for
// different providers and development mode. It centers around the Sender
// interface, which can be implemented by transactional providers or the
// built-in DevSender that saves messages to disk.
//
// # Usage
//
//	// For development
//	sender := email.NewDevSender("./dev_emails")
//
//	params := email.SendEmailParams{
//		To:       []string{"ops@example.com"},
//		Subject:  "Certificate issuance failed",
//		BodyHTML: "<h1>Issuance failed</h1><p>See dashboard for details.</p>",
//		Tag:      "issuance_failed",
//	}
//
//	if err := sender.SendEmail(context.Background(), params); err != nil {
//		log.Error("failed to send email", "error", err)
//	}
//
// Validation happens before dispatch: every recipient address must be
// well-formed and both subject and HTML body must be non-empty.
package email
