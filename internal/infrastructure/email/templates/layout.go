// Package templates renders EduTok notification emails.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// NotificationProps is the content of one school announcement.
type NotificationProps struct {
	Title      string
	Body       string
	ActionURL  string
	ActionText string
	Sender     string
	Preheader  string
	FooterText string
}

type notificationData struct {
	Title      string
	Paragraphs []string
	ActionURL  string
	ActionText string
	Sender     string
	Preheader  string
	FooterText string
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!doctype html>
<html lang="pt-BR">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>{{.Title}}</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.4; background-color: #f4f5f6; margin: 0; padding: 0;">
    <span style="display: none; max-height: 0; overflow: hidden;">{{.Preheader}}</span>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" bgcolor="#f4f5f6">
      <tr>
        <td align="center" style="padding: 24px 8px;">
          <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="600" style="max-width: 600px; background: #ffffff; border: 1px solid #eaebed; border-radius: 16px;">
            <tr>
              <td style="padding: 24px;">
                <h1 style="font-size: 22px; margin: 0 0 16px; color: #1d4ed8;">{{.Title}}</h1>
                {{range .Paragraphs}}<p style="margin: 0 0 16px; color: #111827;">{{.}}</p>
                {{end}}{{if .ActionURL}}<p style="margin: 24px 0;"><a href="{{.ActionURL}}" style="background: #1d4ed8; color: #ffffff; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: bold;">{{.ActionText}}</a></p>
                {{end}}{{if .Sender}}<p style="margin: 16px 0 0; color: #6b7280; font-size: 14px;">{{.Sender}}</p>{{end}}
              </td>
            </tr>
          </table>
          <p style="color: #9a9ea6; font-size: 13px; margin-top: 24px;">{{.FooterText}}</p>
        </td>
      </tr>
    </table>
  </body>
</html>`))

// RenderNotification fills the layout. Body paragraphs are separated by blank
// lines; all text is escaped.
func RenderNotification(props NotificationProps) (string, error) {
	data := notificationData{
		Title:      props.Title,
		Paragraphs: paragraphs(props.Body),
		ActionText: props.ActionText,
		Sender:     props.Sender,
		Preheader:  props.Preheader,
		FooterText: props.FooterText,
	}
	if data.Title == "" {
		data.Title = "Aviso da escola"
	}
	if data.Preheader == "" {
		data.Preheader = data.Title
	}
	if data.FooterText == "" {
		data.FooterText = "Você recebeu este aviso porque faz parte de uma escola no EduTok."
	}
	if props.ActionURL != "" {
		safe, err := safeURL(props.ActionURL)
		if err != nil {
			return "", err
		}
		data.ActionURL = safe
		if data.ActionText == "" {
			data.ActionText = "Abrir no EduTok"
		}
	}

	var buf bytes.Buffer
	if err := notificationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return buf.String(), nil
}

func paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func safeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("invalid action url %q", raw)
	}
	return u.String(), nil
}
