package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/auth"
)

type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Role       auth.Role `db:"role" json:"role"`
	Occupation *string   `db:"occupation" json:"occupation,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type InvitationStatus string

const (
	StatusPending   InvitationStatus = "pending"
	StatusActivated InvitationStatus = "activated"
	StatusExpired   InvitationStatus = "expired"
	StatusRevoked   InvitationStatus = "revoked"
)

type Invitation struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	TenantID       uuid.UUID        `db:"tenant_id" json:"tenant_id"`
	Email          string           `db:"email" json:"email"`
	FullName       string           `db:"full_name" json:"full_name"`
	Role           auth.Role        `db:"role" json:"role"`
	Occupation     *string          `db:"occupation" json:"occupation,omitempty"`
	ActivationCode string           `db:"activation_code" json:"-"`
	ActivationLink string           `db:"activation_link" json:"activation_link"`
	ExpiresAt      time.Time        `db:"expires_at" json:"expires_at"`
	Status         InvitationStatus `db:"status" json:"status"`
	InvitedBy      *uuid.UUID       `db:"invited_by" json:"invited_by,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus reports a stored pending invitation whose expiry has passed
// as expired. Nothing sweeps invitations; expiry is evaluated on read.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == StatusPending && !now.Before(i.ExpiresAt) {
		return StatusExpired
	}
	return i.Status
}

// UserFilter narrows ListUsers. Nil fields do not filter.
type UserFilter struct {
	Role   *auth.Role
	Active *bool
}

type CreateInvitationInput struct {
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Role       auth.Role `json:"role"`
	Occupation string    `json:"occupation"`
}

type ActivateInput struct {
	Code     string `json:"code"`
	FullName string `json:"full_name"`
}
