package subscription

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

// Subject は更新通知の件名です。
const Subject = "Company Update Notification"

//go:embed templates/company_update.tmpl
var templateFS embed.FS

var updateTemplate = template.Must(template.ParseFS(templateFS, "templates/company_update.tmpl"))

type updateView struct {
	Username    string
	CompanyName string
	CompanyCode string
}

func renderUpdate(view updateView) (string, error) {
	var buf bytes.Buffer
	if err := updateTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("subscription: render update: %w", err)
	}
	return buf.String(), nil
}
