package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

const (
	qrSecretBytes = 32
	// terminal sessions are kept this long so a late status poll still sees them
	qrRetention = 10 * time.Minute
)

// QRTicket is returned once to the primary device when a session is created.
type QRTicket struct {
	SessionID string `json:"sessionId"`
	Secret    string `json:"secret"`
	ExpiresAt int64  `json:"expiresAt"`
}

// QRLoginService runs the pending -> approved -> consumed handshake that lets
// a logged-in phone authorize a desktop browser.
type QRLoginService struct {
	db       realtime.Database
	tokens   *security.TokenIssuer
	sealer   *security.Sealer
	logger   *logging.ChanneledLogger
	ttl      time.Duration
	tokenTTL time.Duration
	now      func() time.Time
}

// NewQRLoginService creates a new QR login service
func NewQRLoginService(db realtime.Database, tokens *security.TokenIssuer, sealer *security.Sealer, logger *logging.ChanneledLogger) *QRLoginService {
	return &QRLoginService{
		db:       db,
		tokens:   tokens,
		sealer:   sealer,
		logger:   logger,
		ttl:      config.QRSessionTTL,
		tokenTTL: config.QRTokenTTL,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for expiry decisions.
func (s *QRLoginService) WithClock(now func() time.Time) *QRLoginService {
	s.now = now
	return s
}

// Create opens a pending session. Only the bcrypt hash of the secret is stored.
func (s *QRLoginService) Create(ctx context.Context) (QRTicket, error) {
	secret, err := security.GenerateSecureToken(qrSecretBytes)
	if err != nil {
		return QRTicket{}, err
	}
	hash, err := security.HashSecret(secret)
	if err != nil {
		return QRTicket{}, err
	}

	now := s.now()
	session := edu.QRSession{
		SessionID:  security.GenerateULID(),
		SecretHash: hash,
		Status:     edu.QRPending,
		CreatedAt:  now.UnixMilli(),
		ExpiresAt:  now.Add(s.ttl).UnixMilli(),
	}
	if err := s.db.Set(ctx, QRSessionPath(session.SessionID), session); err != nil {
		return QRTicket{}, fmt.Errorf("failed to create qr session: %w", err)
	}
	s.logger.Auth().Info("QR session created", "sessionId", session.SessionID)
	return QRTicket{SessionID: session.SessionID, Secret: secret, ExpiresAt: session.ExpiresAt}, nil
}

// Approve is called by the already-authenticated device. It issues an access
// token for approver and seals it into the session record.
func (s *QRLoginService) Approve(ctx context.Context, id string, approver security.Identity) (edu.QRStatusView, error) {
	if approver.UID == "" {
		return edu.QRStatusView{}, ErrForbidden
	}
	token, err := s.tokens.Issue(approver, security.KindAccess, s.tokenTTL)
	if err != nil {
		return edu.QRStatusView{}, err
	}
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return edu.QRStatusView{}, err
	}

	expired := false
	session, err := realtime.Transact(ctx, s.db, QRSessionPath(id), func(q *edu.QRSession, exists bool) error {
		expired = false
		if !exists {
			return ErrNotFound
		}
		if q.PastDeadline(s.now()) {
			q.Status = edu.QRExpired
			expired = true
			return nil
		}
		if q.Status == edu.QRExpired {
			return ErrQRExpired
		}
		if q.Status != edu.QRPending {
			return ErrQRInvalidTransition
		}
		q.Status = edu.QRApproved
		q.CustomToken = sealed
		q.ApprovedBy = approver.UID
		return nil
	})
	if err != nil {
		return edu.QRStatusView{}, s.wrap("approve", id, err)
	}
	if expired {
		s.logger.Auth().Info("QR session expired before approval", "sessionId", id)
		return session.View(), ErrQRExpired
	}
	s.logger.Auth().Info("QR session approved", "sessionId", id, "approver", logging.MaskID(approver.UID))
	return session.View(), nil
}

// Redeem exchanges the secret for the approved token. The token is handed
// out exactly once; the record keeps only the consumed status.
func (s *QRLoginService) Redeem(ctx context.Context, id, secret string) (string, error) {
	var sealed string
	expired := false
	_, err := realtime.Transact(ctx, s.db, QRSessionPath(id), func(q *edu.QRSession, exists bool) error {
		expired = false
		if !exists {
			return ErrNotFound
		}
		if q.PastDeadline(s.now()) {
			q.Status = edu.QRExpired
			q.CustomToken = ""
			expired = true
			return nil
		}
		if q.Status == edu.QRExpired {
			return ErrQRExpired
		}
		if q.Status != edu.QRApproved {
			return ErrQRInvalidTransition
		}
		if !security.CompareSecret(q.SecretHash, secret) {
			return ErrQRSecretMismatch
		}
		sealed = q.CustomToken
		q.Status = edu.QRConsumed
		q.CustomToken = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrQRSecretMismatch) {
			s.logger.Auth().Warn("QR redeem with wrong secret", "sessionId", id)
		}
		return "", s.wrap("redeem", id, err)
	}
	if expired {
		return "", ErrQRExpired
	}

	token, err := s.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to open qr token: %w", err)
	}
	s.logger.Auth().Info("QR session consumed", "sessionId", id)
	return token, nil
}

// Status returns the public view, marking the session expired if its TTL
// has elapsed.
func (s *QRLoginService) Status(ctx context.Context, id string) (edu.QRStatusView, error) {
	session, ok, err := realtime.GetAs[edu.QRSession](ctx, s.db, QRSessionPath(id))
	if err != nil {
		return edu.QRStatusView{}, err
	}
	if !ok {
		return edu.QRStatusView{}, ErrNotFound
	}
	if !session.PastDeadline(s.now()) {
		return session.View(), nil
	}
	expired, err := s.expire(ctx, id)
	if err != nil {
		return edu.QRStatusView{}, err
	}
	return expired.View(), nil
}

// Watch calls fn with the session's status now and after every change.
// Snapshots that do not decode are skipped.
func (s *QRLoginService) Watch(id string, fn func(edu.QRStatusView)) realtime.Unsubscribe {
	return s.db.Subscribe(QRSessionPath(id), nil, func(snap realtime.Snapshot) {
		if !snap.Exists {
			return
		}
		var q edu.QRSession
		if err := json.Unmarshal(snap.Value, &q); err != nil {
			s.logger.Auth().Warn("Skipping malformed qr session", "sessionId", id, "error", err)
			return
		}
		fn(q.View())
	})
}

// ExpireStale marks every overdue session expired and removes terminal
// sessions past the retention window. It returns the number of records touched.
func (s *QRLoginService) ExpireStale(ctx context.Context) (int64, error) {
	snap, err := s.db.Get(ctx, QRSessionsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to list qr sessions: %w", err)
	}
	now := s.now()
	var touched int64
	for _, child := range snap.Children {
		var q edu.QRSession
		if err := child.Decode(&q); err != nil {
			continue
		}
		switch {
		case q.PastDeadline(now):
			if _, err := s.expire(ctx, child.Key); err != nil {
				s.logger.Auth().Warn("Failed to expire qr session", "sessionId", child.Key, "error", err)
				continue
			}
			touched++
		case q.Status.Terminal() && now.UnixMilli() >= q.ExpiresAt+qrRetention.Milliseconds():
			if err := s.db.Delete(ctx, QRSessionPath(child.Key)); err != nil {
				s.logger.Auth().Warn("Failed to remove qr session", "sessionId", child.Key, "error", err)
				continue
			}
			touched++
		}
	}
	return touched, nil
}

func (s *QRLoginService) expire(ctx context.Context, id string) (edu.QRSession, error) {
	return realtime.Transact(ctx, s.db, QRSessionPath(id), func(q *edu.QRSession, exists bool) error {
		if !exists {
			return ErrNotFound
		}
		if !q.PastDeadline(s.now()) {
			return nil
		}
		q.Status = edu.QRExpired
		q.CustomToken = ""
		return nil
	})
}

func (s *QRLoginService) wrap(op, id string, err error) error {
	for _, sentinel := range []error{ErrNotFound, ErrQRExpired, ErrQRInvalidTransition, ErrQRSecretMismatch} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("failed to %s qr session %s: %w", op, id, err)
}
