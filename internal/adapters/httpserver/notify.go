package httpserver

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/FingerSpinx7/consola-admin/internal/domain"
)

// notifyVenta avisa por Telegram y, si falla, por email. Siempre best-effort:
// una venta registrada nunca se considera fallida por la notificación.
func notifyVenta(v *domain.Venta, consola string) {
	if err := sendVentaTelegram(v, consola); err != nil {
		log.Warn().Err(err).Msg("telegram notif falló")
		if os.Getenv("SMTP_HOST") != "" {
			_ = sendVentaEmail(v, consola)
		}
	}
}

func ventaResumen(v *domain.Venta, consola string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Venta registrada: %s\n", consola)
	fmt.Fprintf(&b, "Cliente: %s\n", v.NombreCliente)
	fmt.Fprintf(&b, "Fecha: %s\n", v.FechaVenta.Format(fechaLayout))
	fmt.Fprintf(&b, "Precio: $%s\n", v.PrecioVenta.StringFixed(2))
	fmt.Fprintf(&b, "Gastos: $%s\n", v.GastosExtra.StringFixed(2))
	fmt.Fprintf(&b, "Ganancia: $%s\n", v.GananciaBruta.StringFixed(2))
	return b.String()
}

func sendVentaTelegram(v *domain.Venta, consola string) error {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	rawIDs := os.Getenv("TELEGRAM_CHAT_IDS")
	if strings.TrimSpace(rawIDs) == "" {
		rawIDs = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if token == "" || strings.TrimSpace(rawIDs) == "" {
		return fmt.Errorf("telegram vars faltantes")
	}
	apiURL := "https://api.telegram.org/bot" + token + "/sendMessage"
	text := ventaResumen(v, consola)
	var lastErr error
	for _, part := range strings.Split(rawIDs, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		form := url.Values{}
		form.Set("chat_id", id)
		form.Set("text", text)
		form.Set("disable_web_page_preview", "1")
		resp, err := http.PostForm(apiURL, form)
		if err != nil {
			lastErr = err
			continue
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				lastErr = fmt.Errorf("telegram status %d: %s", resp.StatusCode, string(body))
			}
		}()
	}
	return lastErr
}

func sendVentaEmail(v *domain.Venta, consola string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	to := os.Getenv("VENTA_NOTIFY_EMAIL")
	if host == "" || port == "" || user == "" || pass == "" || to == "" {
		log.Warn().Msg("SMTP no configurado, se omite envío de email")
		return nil
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Subject: Venta registrada: %s\r\n", consola)
	fmt.Fprintf(&buf, "From: %s\r\n", user)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	buf.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(ventaResumen(v, consola))
	auth := smtp.PlainAuth("", user, pass, host)
	if err := smtp.SendMail(host+":"+port, auth, user, []string{to}, buf.Bytes()); err != nil {
		log.Error().Err(err).Msg("email send")
		return err
	}
	return nil
}
