package services

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/example/laconfe/internal/models"
)

const (
	LocaleEN = "en"
	LocaleES = "es"

	logoFile = "logo.png"
)

var logoAttachment = Attachment{Filename: logoFile, Path: logoFile}

// NormalizeLocale returns "es" for Spanish locales and "en" for everything else.
func NormalizeLocale(locale string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), LocaleES) {
		return LocaleES
	}
	return LocaleEN
}

// Installments returns the number of installments encoded in a plan id, at least 1.
func Installments(planID string) int {
	n, err := strconv.Atoi(strings.TrimSpace(planID))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

type confirmationText struct {
	subject, greeting, intro, item, amountHeader string
	room, plan, promo, total, date, order, help  string
	signoff, dateLayout                          string
}

var confirmationTexts = map[string]confirmationText{
	LocaleEN: {
		subject:      "Payment Confirmation - LaConfe26",
		greeting:     "Hello",
		intro:        "Thank you for your payment for La Confe 26. Here is your receipt:",
		item:         "Item",
		amountHeader: "Amount (USD)",
		room:         "Accommodation",
		plan:         "Payment Plan: %d installment(s)",
		promo:        "Promo Applied",
		total:        "Total Paid",
		date:         "Date",
		order:        "Order Number",
		help:         "If you have any questions, please contact our support team.",
		signoff:      "Best regards,<br/>La Confe 26 Organizing Committee",
		dateLayout:   "1/2/2006",
	},
	LocaleES: {
		subject:      "Confirmación de Pago - LaConfe26",
		greeting:     "Hola",
		intro:        "Gracias por tu pago para La Confe 26. Aquí está tu recibo:",
		item:         "Artículo",
		amountHeader: "Monto (USD)",
		room:         "Alojamiento",
		plan:         "Plan de Pago: %d cuota(s)",
		promo:        "Promo Aplicado",
		total:        "Total Pagado",
		date:         "Fecha",
		order:        "Número de Orden",
		help:         "Si tienes alguna pregunta, por favor contacta a nuestro equipo de soporte.",
		signoff:      "Saludos cordiales,<br/>Comité Organizador de La Confe 26",
		dateLayout:   "2/1/2006",
	},
}

// PaymentConfirmationEmail renders the receipt sent after a successful payment.
func PaymentConfirmationEmail(payment *models.Payment, user *models.User, room *models.Room, now time.Time) Email {
	t := confirmationTexts[NormalizeLocale(payment.Locale)]

	installments := Installments(payment.PlanID)
	perInstallment := payment.Amount
	if installments > 1 {
		perInstallment = payment.Amount / float64(installments)
	}

	var promoRow string
	if payment.PromoCode != "" {
		discount := ""
		if installments > 1 {
			discount = "-$" + money(perInstallment*0.1)
		}
		promoRow = fmt.Sprintf(`<tr><td style="padding:8px;">%s: %s</td><td style="padding:8px; text-align:right;">%s</td></tr>`,
			t.promo, html.EscapeString(payment.PromoCode), discount)
	}

	body := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; color: #333;">
<img src="cid:%s" alt="LaConfe26 Logo" style="width:150px; margin-bottom:20px;" />
<h2 style="color:#D22163;">%s %s,</h2>
<p>%s</p>
<table style="width:100%%; border-collapse: collapse; margin-top:20px;">
<tr style="background:#f3f3f3;"><th style="padding:8px; text-align:left; border-bottom:1px solid #ccc;">%s</th><th style="padding:8px; text-align:right; border-bottom:1px solid #ccc;">%s</th></tr>
<tr><td style="padding:8px;">%s: %s</td><td style="padding:8px; text-align:right;">$%s</td></tr>
<tr><td style="padding:8px;">%s</td><td style="padding:8px; text-align:right;">$%s</td></tr>
%s
<tr style="font-weight:bold;"><td style="padding:8px;">%s</td><td style="padding:8px; text-align:right;">$%s</td></tr>
</table>
<p style="margin-top:20px;">%s: %s</p>
<p>%s: %s</p>
<p>%s</p>
<p>%s</p>
</div>`,
		logoFile,
		t.greeting, html.EscapeString(user.FirstName),
		t.intro,
		t.item, t.amountHeader,
		t.room, html.EscapeString(room.Name), money(room.Price),
		fmt.Sprintf(t.plan, installments), money(perInstallment),
		promoRow,
		t.total, money(payment.Amount),
		t.date, now.Format(t.dateLayout),
		t.order, html.EscapeString(payment.OrderNumber),
		t.help,
		t.signoff,
	)

	return Email{
		To:          user.Email,
		Subject:     t.subject,
		HTML:        body,
		Attachments: []Attachment{logoAttachment},
	}
}

// RegistrationEmail renders the welcome message sent after account creation.
func RegistrationEmail(locale, to, firstName string) Email {
	name := html.EscapeString(firstName)
	if NormalizeLocale(locale) == LocaleES {
		return Email{
			To:      to,
			Subject: "Registro de Cuenta Exitoso - LaConfe26",
			HTML: wrapLetter(`<h2 style="text-align: center; color: #213cd2;">¡Bienvenido a LaConfe26!</h2>
<p>Hola ` + name + `,</p>
<p>¡Gracias por crear una cuenta para <strong>LaConfe26</strong>! Ya puedes iniciar sesión y seguir usando el sitio web para comprar tu alojamiento y acceso a la conferencia antes de la fecha límite.</p>
<p>Si tienes alguna pregunta, no dudes en contactar a nuestro equipo de soporte.</p>
<p style="margin-top: 30px;">Saludos cordiales,<br/>Comité Organizador de La Confe 26</p>`),
			Attachments: []Attachment{logoAttachment},
		}
	}
	return Email{
		To:      to,
		Subject: "Account Registration Successful - LaConfe26",
		HTML: wrapLetter(`<h2 style="text-align: center; color: #213cd2;">Welcome to LaConfe26!</h2>
<p>Hi ` + name + `,</p>
<p>Thank you for creating an account for <strong>LaConfe26</strong>! You can now log in and continue using the website to purchase your accommodation and conference access before the deadline.</p>
<p>If you have any questions, feel free to reach out to our support team.</p>
<p style="margin-top: 30px;">Warm regards,<br/>La Confe 26 Organizing Committee</p>`),
		Attachments: []Attachment{logoAttachment},
	}
}

// PasswordResetEmail renders the message carrying a password-reset link.
func PasswordResetEmail(locale, to, firstName, link string) Email {
	name := html.EscapeString(firstName)
	href := html.EscapeString(link)
	if NormalizeLocale(locale) == LocaleES {
		return Email{
			To:      to,
			Subject: "Restablecer Contraseña - LaConfe26",
			HTML: wrapLetter(`<p>Hola ` + name + `,</p>
<p>Recibimos una solicitud para restablecer tu contraseña. El enlace es válido por una hora.</p>
<p><a href="` + href + `">Restablecer contraseña</a></p>
<p>Si no solicitaste este cambio, ignora este correo.</p>`),
			Attachments: []Attachment{logoAttachment},
		}
	}
	return Email{
		To:      to,
		Subject: "Password Reset - LaConfe26",
		HTML: wrapLetter(`<p>Hi ` + name + `,</p>
<p>We received a request to reset your password. The link is valid for one hour.</p>
<p><a href="` + href + `">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>`),
		Attachments: []Attachment{logoAttachment},
	}
}

func wrapLetter(inner string) string {
	return `<div style="font-family: Arial, sans-serif; color: #333; line-height: 1.5; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 8px;">
<div style="text-align: center; margin-bottom: 20px;"><img src="cid:` + logoFile + `" alt="La Confe 26" style="width: 150px; height: auto;" /></div>
` + inner + `
<hr style="margin-top: 40px; border: 0; border-top: 1px solid #eee;">
<p style="font-size: 12px; color: #999; text-align: center;">© 2025 La Confe 26. All rights reserved.</p>
</div>`
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
