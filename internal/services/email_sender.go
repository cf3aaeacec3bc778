package services

import "context"

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}
