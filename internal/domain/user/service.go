package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/auth"
	"github.com/carelink/agency/internal/platform/db"
)

const defaultInvitationTTL = 7 * 24 * time.Hour

var errNoTenant = errors.New("request has no tenant")

type Config struct {
	ActivationBaseURL string
	InvitationTTL     time.Duration
}

type Service struct {
	users   UserRepository
	invites InvitationRepository
	tx      Transactor
	cfg     Config

	now     func() time.Time
	newCode func() (string, error)
}

func NewService(users UserRepository, invites InvitationRepository, tx Transactor, cfg Config) *Service {
	if cfg.InvitationTTL <= 0 {
		cfg.InvitationTTL = defaultInvitationTTL
	}
	return &Service{
		users:   users,
		invites: invites,
		tx:      tx,
		cfg:     cfg,
		now:     time.Now,
		newCode: randomCode,
	}
}

func randomCode() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate activation code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func tenantOf(ctx context.Context) (uuid.UUID, error) {
	id := db.TenantFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, errNoTenant
	}
	return id, nil
}

// -- Invitations --

func validateInvitation(ctx context.Context, in *CreateInvitationInput) error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Occupation = strings.TrimSpace(in.Occupation)

	if in.FullName == "" {
		return invalid("full_name", "is required")
	}
	if in.Email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return invalid("email", "is not a valid address")
	}
	if !in.Role.Valid() {
		return invalid("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	if in.Role == auth.RoleClinician && in.Occupation == "" {
		return invalid("occupation", "is required for clinicians")
	}
	if in.Role == auth.RoleSuperAdmin && auth.RoleFromContext(ctx) != auth.RoleSuperAdmin {
		return ErrForbiddenRole
	}
	return nil
}

// CreateInvitation validates the input before touching storage, then records
// a pending invitation carrying a fresh activation code.
func (s *Service) CreateInvitation(ctx context.Context, in CreateInvitationInput) (*Invitation, error) {
	if err := validateInvitation(ctx, &in); err != nil {
		return nil, err
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}

	inv := &Invitation{
		TenantID: tenantID,
		Email:    in.Email,
		FullName: in.FullName,
		Role:     in.Role,
		Status:   StatusPending,
	}
	if in.Occupation != "" {
		occ := in.Occupation
		inv.Occupation = &occ
	}
	if caller := auth.UserIDFromContext(ctx); caller != uuid.Nil {
		inv.InvitedBy = &caller
	}
	if err := s.issue(inv); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		taken, err := s.users.ExistsByEmail(ctx, tenantID, inv.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		now := s.now()
		if err := s.invites.ExpireStale(ctx, tenantID, inv.Email, now); err != nil {
			return err
		}
		pending, err := s.invites.HasLivePending(ctx, tenantID, inv.Email, now)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicateInvitation
		}
		return s.invites.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// issue assigns a new activation code, link and expiry.
func (s *Service) issue(inv *Invitation) error {
	code, err := s.newCode()
	if err != nil {
		return err
	}
	link, err := activationLink(s.cfg.ActivationBaseURL, code)
	if err != nil {
		return err
	}
	inv.ActivationCode = code
	inv.ActivationLink = link
	inv.ExpiresAt = s.now().Add(s.cfg.InvitationTTL)
	return nil
}

func activationLink(base, code string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse activation base url: %w", err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResendInvitation reissues the code, link and expiry of a stored pending
// invitation. A pending invitation that has lapsed is revived by this.
func (s *Service) ResendInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.invites.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending {
		return nil, ErrInvitationNotPending
	}
	if err := s.issue(inv); err != nil {
		return nil, err
	}
	if err := s.invites.Reissue(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) RevokeInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.invites.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending {
		return nil, ErrInvitationNotPending
	}
	changed, err := s.invites.TransitionStatus(ctx, tenantID, id, StatusPending, StatusRevoked)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrInvitationNotPending
	}
	inv.Status = StatusRevoked
	return inv, nil
}

// ListInvitations reports lapsed pending invitations as expired without
// writing the status back.
func (s *Service) ListInvitations(ctx context.Context, limit, offset int) ([]*Invitation, int, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, 0, err
	}
	invs, total, err := s.invites.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for _, inv := range invs {
		inv.Status = inv.EffectiveStatus(now)
	}
	return invs, total, nil
}

// ActivateInvitation redeems an activation code. It runs without a request
// tenant; the invitation carries it. The status change and the new user are
// written in one transaction.
func (s *Service) ActivateInvitation(ctx context.Context, in ActivateInput) (*User, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, invalid("code", "is required")
	}
	inv, err := s.invites.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusPending {
		return nil, ErrInvitationNotPending
	}
	if inv.EffectiveStatus(s.now()) == StatusExpired {
		if _, err := s.invites.TransitionStatus(ctx, inv.TenantID, inv.ID, StatusPending, StatusExpired); err != nil {
			return nil, err
		}
		return nil, ErrInvitationExpired
	}

	u := &User{
		TenantID:   inv.TenantID,
		Email:      inv.Email,
		FullName:   inv.FullName,
		Role:       inv.Role,
		Occupation: inv.Occupation,
		Active:     true,
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		u.FullName = name
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		changed, err := s.invites.TransitionStatus(ctx, inv.TenantID, inv.ID, StatusPending, StatusActivated)
		if err != nil {
			return err
		}
		if !changed {
			return ErrInvitationNotPending
		}
		return s.users.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// -- Users --

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, tenantID, id)
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter, limit, offset int) ([]*User, int, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.users.List(ctx, tenantID, f, limit, offset)
}

func (s *Service) ListActiveClinicians(ctx context.Context) ([]*User, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return s.users.ListActiveByRole(ctx, tenantID, auth.RoleClinician)
}

// ToggleUserActive flips a user's active flag and returns the updated user.
func (s *Service) ToggleUserActive(ctx context.Context, id uuid.UUID) (*User, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	if auth.UserIDFromContext(ctx) == id {
		return nil, ErrSelfDeactivation
	}
	return s.users.ToggleActive(ctx, tenantID, id)
}

// IsActiveClinician reports whether id is an active clinician in the
// request's tenant.
func (s *Service) IsActiveClinician(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Active && u.Role == auth.RoleClinician, nil
}
