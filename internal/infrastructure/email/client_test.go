package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceRequiresKey(t *testing.T) {
	_, err := NewService("", "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	svc, err := NewService("re_test", "", "")
	require.NoError(t, err)
	client := svc.(*ResendClient)
	assert.Equal(t, "noreply@edutok.app", client.fromEmail)
	assert.Equal(t, "EduTok", client.fromName)
}

func TestNotificationValidate(t *testing.T) {
	ok := Notification{To: []string{"pais@escola.br"}, Subject: "Aviso", Body: "Sem aula sexta"}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.To = nil
	assert.Error(t, bad.Validate())

	bad = ok
	bad.To = []string{"not-an-address"}
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Body = "  "
	assert.Error(t, bad.Validate())
}

func TestSendNotificationValidatesBeforeSending(t *testing.T) {
	svc, err := NewService("re_test", "", "")
	require.NoError(t, err)
	_, err = svc.SendNotification(context.Background(), Notification{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SendNotification(ctx, Notification{To: []string{"a@b.c"}, Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, context.Canceled)
}
