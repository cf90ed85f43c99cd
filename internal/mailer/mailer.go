package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

var codeTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Email Verification</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0;">
    <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; padding: 20px; border-radius: 8px;">
        <div style="text-align: center; padding-bottom: 20px; border-bottom: 1px solid #dddddd;">
            <h1 style="margin: 0; font-size: 24px; color: #333333;">Email Verification</h1>
        </div>
        <div style="padding: 20px 0;">
            <p style="margin: 0 0 20px 0; font-size: 16px; color: #666666;">Hi {{.Username}},</p>
            <p style="margin: 0 0 20px 0; font-size: 16px; color: #666666;">Your verification code is:</p>
            <span style="display: block; text-align: center; font-size: 20px; font-weight: bold; color: #333333; margin: 20px 0;">{{.Code}}</span>
        </div>
        <div style="text-align: center; padding-top: 20px; border-top: 1px solid #dddddd;">
            <p style="margin: 0; font-size: 14px; color: #aaaaaa;">If you did not request this code, please ignore this email.</p>
        </div>
    </div>
</body>
</html>`))

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendVerificationCode renders the verification template and sends it over
// SMTP.
func (m *Mailer) SendVerificationCode(to, username, code string) error {
	const op = "mailer.SendVerificationCode"

	var body bytes.Buffer
	err := codeTemplate.Execute(&body, struct {
		Username string
		Code     string
	}{Username: username, Code: code})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.From)
	msg.SetHeader("Subject", "MysteryMsg Verification Code")

	msg.SetBody("text/html", body.String())

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	return dialer.DialAndSend(msg)
}
