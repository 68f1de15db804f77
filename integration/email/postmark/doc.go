// Package postmark implements the email.Sender interface using the
// Postmark transactional email API. Operator escalations with several
// recipients are sent as a single message.
package postmark
