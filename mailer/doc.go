// Package mailer implements dualAuth.Mailer.
//
// [LogMailer] writes messages to a logger and is meant for development.
// [SMTPMailer] delivers plain-text messages through an SMTP relay.
package mailer
