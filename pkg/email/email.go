// Package email, uygulama genelinde email gönderimi için soyutlama katmanı sağlar.
//
// EmailSender interface'i ile email gönderim detayları soyutlanır (Dependency Inversion).
// Şu anki implementasyon Resend API kullanır. İleride farklı bir sağlayıcıya
// geçmek için sadece yeni bir implementasyon yazıp constructor'da değiştirmek yeterli.
//
// Bu paket dışarıya iki şey sunar:
// 1. EmailSender interface — service ve controller katmanı buna bağımlı olur
// 2. NewResendSender constructor — main.go'da wire-up için
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// EmailSender, email gönderimi için interface.
// Tüketiciler bu interface'e bağımlıdır, concrete Resend implementasyonuna değil.
type EmailSender interface {
	// SendAdmissionDecision, bekleme odasındaki kullanıcıya katılım isteğinin
	// sonucunu (onay veya ret) bildiren email gönderir.
	// toEmail: alıcı email adresi, roomName: oda adı, approved: karar.
	SendAdmissionDecision(ctx context.Context, toEmail, roomName string, approved bool) error
}

// resendSender, Resend API ile email gönderen EmailSender implementasyonu.
type resendSender struct {
	client    *resend.Client
	fromEmail string // Gönderici adresi (ör: noreply@halka.app)
	appURL    string // Uygulamanın public URL'i (ör: https://app.halka.app)
}

// NewResendSender, Resend API client'ı ile yeni bir EmailSender oluşturur.
//
// apiKey: Resend dashboard'dan alınan API key (re_xxxxxxxx formatında).
// fromEmail: Gönderici email adresi — Resend'de doğrulanmış domain altında olmalı.
// appURL: Uygulamanın public URL'i — odaya giden link'lerde kullanılır.
func NewResendSender(apiKey, fromEmail, appURL string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

// SendAdmissionDecision, katılım kararı email'i gönderir.
//
// Onay durumunda email odaya giden link içerir; ret durumunda sadece
// bilgilendirme yapılır. Kararlar asenkron verilebildiği için kullanıcı
// uygulamada olmayabilir — email ikinci bildirim kanalıdır.
func (s *resendSender) SendAdmissionDecision(ctx context.Context, toEmail, roomName string, approved bool) error {
	var subject, heading, body, button string
	if approved {
		subject = fmt.Sprintf("You're in: %s — halka", roomName)
		heading = "Request Approved"
		body = fmt.Sprintf("Your request to join <strong style=\"color:#e2e8f0;\">%s</strong> was approved. You can enter the room now.", roomName)
		button = fmt.Sprintf(`<table cellpadding="0" cellspacing="0" style="margin:0 0 24px 0;">
                <tr>
                  <td style="background-color:#6366f1;border-radius:6px;padding:12px 32px;">
                    <a href="%s/rooms" style="color:#ffffff;text-decoration:none;font-size:15px;font-weight:600;">
                      Open halka
                    </a>
                  </td>
                </tr>
              </table>`, s.appURL)
	} else {
		subject = fmt.Sprintf("Request declined: %s — halka", roomName)
		heading = "Request Declined"
		body = fmt.Sprintf("Your request to join <strong style=\"color:#e2e8f0;\">%s</strong> was declined by the room's creator.", roomName)
		button = ""
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#1a1a2e;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#1a1a2e;padding:40px 0;">
    <tr>
      <td align="center">
        <table width="480" cellpadding="0" cellspacing="0" style="background-color:#16213e;border-radius:8px;padding:40px;">
          <tr>
            <td>
              <h1 style="color:#e2e8f0;font-size:24px;margin:0 0 8px 0;">halka</h1>
              <h2 style="color:#e2e8f0;font-size:18px;margin:0 0 24px 0;">%s</h2>
              <p style="color:#94a3b8;font-size:15px;line-height:1.6;margin:0 0 24px 0;">
                %s
              </p>
              %s
              <p style="color:#64748b;font-size:13px;line-height:1.6;margin:0;">
                You received this email because you requested to join a room on halka.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`, heading, body, button)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("halka <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send admission decision email: %w", err)
	}

	return nil
}
