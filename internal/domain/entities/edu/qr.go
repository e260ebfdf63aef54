package edu

import "time"

// QRStatus is the state of a QR login session.
type QRStatus string

const (
	QRPending  QRStatus = "pending"
	QRApproved QRStatus = "approved"
	QRConsumed QRStatus = "consumed"
	QRExpired  QRStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s QRStatus) Terminal() bool {
	return s == QRConsumed || s == QRExpired
}

// QRSession is stored at qrSessions/<id>. CustomToken is sealed at rest.
type QRSession struct {
	SessionID   string   `json:"sessionId"`
	SecretHash  string   `json:"secretHash"`
	Status      QRStatus `json:"status"`
	CreatedAt   int64    `json:"createdAt"`
	ExpiresAt   int64    `json:"expiresAt"`
	CustomToken string   `json:"customToken,omitempty"`
	ApprovedBy  string   `json:"approvedBy,omitempty"`
}

// PastDeadline reports whether the TTL has elapsed for a non-terminal session.
func (q QRSession) PastDeadline(now time.Time) bool {
	return !q.Status.Terminal() && now.UnixMilli() >= q.ExpiresAt
}

// QRStatusView is what clients may see of a session.
type QRStatusView struct {
	SessionID  string   `json:"sessionId"`
	Status     QRStatus `json:"status"`
	ExpiresAt  int64    `json:"expiresAt"`
	ApprovedBy string   `json:"approvedBy,omitempty"`
}

func (q QRSession) View() QRStatusView {
	return QRStatusView{SessionID: q.SessionID, Status: q.Status, ExpiresAt: q.ExpiresAt, ApprovedBy: q.ApprovedBy}
}
