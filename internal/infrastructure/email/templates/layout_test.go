package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNotification(t *testing.T) {
	html, err := RenderNotification(NotificationProps{
		Title:     "Reunião de pais",
		Body:      "Primeiro parágrafo.\n\nSegundo <b>parágrafo</b>.",
		ActionURL: "https://edutok.app/eventos/1",
		Sender:    "Secretaria",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Reunião de pais")
	assert.Contains(t, html, "Primeiro parágrafo.")
	assert.Contains(t, html, "Segundo &lt;b&gt;parágrafo&lt;/b&gt;.")
	assert.Contains(t, html, `href="https://edutok.app/eventos/1"`)
	assert.Contains(t, html, "Abrir no EduTok")
}

func TestRenderNotificationRejectsScriptURLs(t *testing.T) {
	_, err := RenderNotification(NotificationProps{Body: "x", ActionURL: "javascript:alert(1)"})
	assert.Error(t, err)
}

func TestRenderNotificationDefaults(t *testing.T) {
	html, err := RenderNotification(NotificationProps{Body: "Aula cancelada"})
	require.NoError(t, err)
	assert.Contains(t, html, "Aviso da escola")
	assert.NotContains(t, html, "href=")
}
