package services

import (
	"bytes"
	htmltemplate "html/template"
	"net/url"
	"strconv"
	texttemplate "text/template"
	"time"
)

type linkEmail struct {
	Name      string
	Link      string
	ValidFor  string
	Heading   string
	Intro     string
	Action    string
	Footnote  string
	ToAddress string
	Subject   string
}

var linkEmailText = texttemplate.Must(texttemplate.New("text").Parse(`Hi {{if .Name}}{{.Name}}{{else}}there{{end}},

{{.Intro}}

{{.Link}}

This link is valid for {{.ValidFor}}.

{{.Footnote}}

Mirror of Dreams
`))

var linkEmailHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; background: #0f0a1f; color: #e8e3f3; padding: 32px;">
  <h1 style="font-weight: normal;">{{.Heading}}</h1>
  <p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
  <p>{{.Intro}}</p>
  <p><a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background: #7c5cff; color: #fff; text-decoration: none; border-radius: 8px;">{{.Action}}</a></p>
  <p style="font-size: 13px; color: #a69cc4;">This link is valid for {{.ValidFor}}. {{.Footnote}}</p>
</body>
</html>
`))

func (e linkEmail) render() (Email, error) {
	var text, html bytes.Buffer
	if err := linkEmailText.Execute(&text, e); err != nil {
		return Email{}, err
	}
	if err := linkEmailHTML.Execute(&html, e); err != nil {
		return Email{}, err
	}
	return Email{To: e.ToAddress, Subject: e.Subject, Text: text.String(), HTML: html.String()}, nil
}

func resetPasswordEmail(to, name, appURL, rawToken string, ttl time.Duration) (Email, error) {
	return linkEmail{
		ToAddress: to,
		Name:      name,
		Subject:   "Reset your Mirror of Dreams password",
		Heading:   "Reset your password",
		Intro:     "We received a request to reset your password. Use the link below to choose a new one.",
		Action:    "Reset password",
		Link:      appURL + "/auth/reset-password?token=" + url.QueryEscape(rawToken),
		ValidFor:  humanDuration(ttl),
		Footnote:  "If you did not request this, you can ignore this email.",
	}.render()
}

func verificationEmail(to, name, appURL, rawToken string, ttl time.Duration) (Email, error) {
	return linkEmail{
		ToAddress: to,
		Name:      name,
		Subject:   "Verify your Mirror of Dreams email",
		Heading:   "Confirm your email",
		Intro:     "Please confirm your email address to finish setting up your account.",
		Action:    "Verify email",
		Link:      appURL + "/api/auth/verify-email?token=" + url.QueryEscape(rawToken),
		ValidFor:  humanDuration(ttl),
		Footnote:  "If you did not create an account, you can ignore this email.",
	}.render()
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour && d%(24*time.Hour) == 0:
		return strconv.Itoa(int(d/(24*time.Hour))) + " days"
	case d == 24*time.Hour:
		return "24 hours"
	case d >= 2*time.Hour && d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	case d == time.Hour:
		return "1 hour"
	default:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	}
}
