package email

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/andreasstove999/ecommerce-system/internal/events"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("email").
		Funcs(template.FuncMap{"money": func(v float64) string { return fmt.Sprintf("%.2f EUR", v) }}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

const confirmationTemplate = "order_confirmation.tmpl"

func renderConfirmation(d events.OrderDetails) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, confirmationTemplate, d); err != nil {
		return "", fmt.Errorf("render %s: %w", confirmationTemplate, err)
	}
	return buf.String(), nil
}
