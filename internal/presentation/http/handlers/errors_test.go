package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/application/views"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("%w: text is required", edu.ErrValidation):       http.StatusBadRequest,
		edu.ErrNoPoll:                                               http.StatusBadRequest,
		services.ErrQRSecretMismatch:                                http.StatusUnauthorized,
		session.ErrClosed:                                           http.StatusUnauthorized,
		services.ErrForbidden:                                       http.StatusForbidden,
		fmt.Errorf("failed to read: %w", realtime.ErrNotFound):      http.StatusNotFound,
		fmt.Errorf("failed to vote on p1: %w", edu.ErrAlreadyVoted): http.StatusConflict,
		views.ErrLoadInProgress:                                     http.StatusConflict,
		services.ErrQRExpired:                                       http.StatusGone,
		services.ErrNotConfigured:                                   http.StatusServiceUnavailable,
		context.DeadlineExceeded:                                    http.StatusGatewayTimeout,
		errors.New("disk on fire"):                                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
