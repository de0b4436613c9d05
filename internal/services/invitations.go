// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/zondarr/zondarr/internal/database"
	"github.com/zondarr/zondarr/internal/logging"
	"github.com/zondarr/zondarr/internal/media"
	"github.com/zondarr/zondarr/internal/metrics"
	"github.com/zondarr/zondarr/internal/models"
)

// codeAlphabet excludes 0/O/1/I/L so codes survive being read aloud.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 8
)

// InvitationService owns invitation lifecycle and redemption.
type InvitationService struct {
	store    *database.Store
	registry *media.Registry
	wizards  *WizardService
}

// NewInvitationService builds the service. wizards gates redemption on
// pre-wizard completion and may be nil in tests that don't exercise it.
func NewInvitationService(store *database.Store, registry *media.Registry, wizards *WizardService) *InvitationService {
	return &InvitationService{store: store, registry: registry, wizards: wizards}
}

// GenerateCode returns a random human-typable invitation code.
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Create validates grants and persists a new invitation. A blank Code
// gets a generated one; collisions with existing codes are retried.
func (s *InvitationService) Create(ctx context.Context, inv *models.Invitation) error {
	if len(inv.ServerIDs) == 0 {
		return fmt.Errorf("invitation must grant at least one server")
	}

	// Every granted server must exist and be enabled.
	serverLibs := make(map[string]map[string]bool, len(inv.ServerIDs))
	for _, sid := range inv.ServerIDs {
		srv, err := s.store.GetMediaServer(ctx, sid)
		if err != nil {
			return err
		}
		if !srv.Enabled {
			return fmt.Errorf("server %s: %w", srv.Name, ErrServerNotEnabled)
		}
		libs, err := s.store.ListLibraries(ctx, sid)
		if err != nil {
			return err
		}
		ids := make(map[string]bool, len(libs))
		for _, l := range libs {
			ids[l.ID] = true
		}
		serverLibs[sid] = ids
	}

	// Restricted libraries must belong to a granted server.
	for _, lid := range inv.LibraryIDs {
		found := false
		for _, ids := range serverLibs {
			if ids[lid] {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("library %s: %w", lid, ErrLibraryNotOnServer)
		}
	}

	// Referenced wizards must exist.
	for _, wid := range []*string{inv.PreWizardID, inv.PostWizardID} {
		if wid == nil {
			continue
		}
		if _, err := s.store.GetWizard(ctx, *wid); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("wizard %s: %w", *wid, ErrWizardNotFound)
			}
			return err
		}
	}

	generated := inv.Code == ""
	for attempt := 0; ; attempt++ {
		if generated {
			code, err := GenerateCode()
			if err != nil {
				return err
			}
			inv.Code = code
		}
		err := s.store.CreateInvitation(ctx, inv)
		if err == nil {
			break
		}
		if generated && errors.Is(err, database.ErrDuplicate) && attempt < 4 {
			continue // regenerate and retry
		}
		return err
	}

	metrics.InvitationsCreated.Inc()
	logging.Info().
		Str("invitation_id", inv.ID).
		Str("code", inv.Code).
		Int("servers", len(inv.ServerIDs)).
		Msg("Invitation created")
	return nil
}

// Validate checks a code's redeemability, returning the invitation on
// success and a distinct sentinel per failure reason.
func (s *InvitationService) Validate(ctx context.Context, code string) (*models.Invitation, error) {
	inv, err := s.store.FindInvitationByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	switch {
	case inv.Disabled:
		return nil, ErrInvitationDisabled
	case inv.Expired(time.Now().UTC()):
		return nil, ErrInvitationExpired
	case inv.Exhausted():
		return nil, ErrInvitationExhausted
	}
	return inv, nil
}

// RedeemRequest carries the guest's details for provisioning.
type RedeemRequest struct {
	Username    string `validate:"required,min=2,max=64"`
	Password    string `validate:"omitempty,min=8,max=72"`
	Email       string `validate:"omitempty,email"`
	DisplayName string `validate:"omitempty,max=128"`
	// WizardToken proves the invitation's pre-wizard was finished.
	// Ignored when the invitation has no pre-wizard.
	WizardToken string `validate:"omitempty"`
}

// RedeemResult reports what a successful redemption provisioned.
type RedeemResult struct {
	Identity *models.Identity `json:"identity"`
	Users    []models.User    `json:"users"`
	// PostWizardID, when set, is the wizard the guest should be routed
	// to after provisioning.
	PostWizardID *string `json:"post_wizard_id,omitempty"`
}

type provisioned struct {
	server *models.MediaServer
	client media.Client
	remote *media.RemoteUser
}

// Redeem provisions the guest on every granted server. External calls
// run first; local rows are written only after every server succeeded.
// Partial external success is rolled back best-effort and the use slot
// released.
func (s *InvitationService) Redeem(ctx context.Context, code string, req RedeemRequest) (*RedeemResult, error) {
	inv, err := s.Validate(ctx, code)
	if err != nil {
		metrics.InvitationRedemptions.WithLabelValues(redeemOutcome(err)).Inc()
		return nil, err
	}

	if inv.PreWizardID != nil && s.wizards != nil {
		if err := s.wizards.VerifyCompletion(ctx, req.WizardToken, *inv.PreWizardID, inv.ID); err != nil {
			metrics.InvitationRedemptions.WithLabelValues("failed").Inc()
			return nil, err
		}
	}

	// Claim a use slot up front: the conditional update is what stops
	// two guests splitting the last use between them.
	if err := s.store.ConsumeInvitationUse(ctx, inv.ID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.InvitationRedemptions.WithLabelValues("exhausted").Inc()
			return nil, ErrInvitationExhausted
		}
		return nil, err
	}

	result, err := s.provision(ctx, inv, req)
	if err != nil {
		if relErr := s.store.ReleaseInvitationUse(ctx, inv.ID); relErr != nil {
			logging.Error().Err(relErr).Str("invitation_id", inv.ID).
				Msg("Failed to release invitation use after failed redemption")
		}
		metrics.InvitationRedemptions.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.InvitationRedemptions.WithLabelValues("ok").Inc()
	return result, nil
}

func (s *InvitationService) provision(ctx context.Context, inv *models.Invitation, req RedeemRequest) (*RedeemResult, error) {
	created := make([]provisioned, 0, len(inv.ServerIDs))
	rollback := func() {
		for _, p := range created {
			if err := p.client.DeleteUser(ctx, p.remote.ExternalID); err != nil {
				logging.Error().Err(err).
					Str("server", p.server.Name).
					Str("external_id", p.remote.ExternalID).
					Msg("Failed to roll back provisioned user")
			}
		}
	}

	for _, sid := range inv.ServerIDs {
		srv, err := s.store.GetMediaServer(ctx, sid)
		if err != nil {
			rollback()
			return nil, err
		}
		client, err := s.registry.ClientFor(srv)
		if err != nil {
			rollback()
			return nil, err
		}
		policy, err := s.policyForServer(ctx, inv, srv)
		if err != nil {
			rollback()
			return nil, err
		}

		remote, err := client.CreateUser(ctx, media.NewUserRequest{
			Username: req.Username,
			Password: req.Password,
			Email:    req.Email,
			Policy:   policy,
		})
		if err != nil {
			rollback()
			return nil, fmt.Errorf("provisioning on %s failed: %w", srv.Name, err)
		}
		created = append(created, provisioned{server: srv, client: client, remote: remote})
		metrics.UsersProvisioned.WithLabelValues(srv.Type).Inc()
	}

	// All external calls succeeded; write local state.
	identity, err := s.findOrCreateIdentity(ctx, req)
	if err != nil {
		rollback()
		return nil, err
	}

	var expiresAt *time.Time
	if inv.UserExpiresAfter != nil {
		t := time.Now().UTC().Add(*inv.UserExpiresAfter).Truncate(time.Second)
		expiresAt = &t
	}

	users := make([]models.User, 0, len(created))
	for _, p := range created {
		var email *string
		if e := firstNonEmpty(p.remote.Email, req.Email); e != "" {
			email = &e
		}
		u := models.User{
			IdentityID:   &identity.ID,
			ServerID:     p.server.ID,
			ExternalID:   p.remote.ExternalID,
			Username:     p.remote.Username,
			Email:        email,
			Enabled:      true,
			ExpiresAt:    expiresAt,
			InvitationID: &inv.ID,
		}
		if err := s.store.CreateUser(ctx, &u); err != nil {
			// Local bookkeeping failed after external success. Keep the
			// external accounts (the guest can use them); sync imports
			// the rows on its next pass.
			logging.Error().Err(err).
				Str("server", p.server.Name).
				Str("external_id", p.remote.ExternalID).
				Msg("Failed to record provisioned user locally")
			continue
		}
		users = append(users, u)
	}

	logging.Info().
		Str("invitation_id", inv.ID).
		Str("identity_id", identity.ID).
		Int("servers", len(created)).
		Msg("Invitation redeemed")

	return &RedeemResult{
		Identity:     identity,
		Users:        users,
		PostWizardID: inv.PostWizardID,
	}, nil
}

// policyForServer resolves the invitation's grant into a concrete
// policy for one server. An unrestricted invitation grants the server's
// enabled libraries; a restricted one grants the subset belonging to
// this server.
func (s *InvitationService) policyForServer(ctx context.Context, inv *models.Invitation, srv *models.MediaServer) (media.UserPolicy, error) {
	libs, err := s.store.ListLibraries(ctx, srv.ID)
	if err != nil {
		return media.UserPolicy{}, err
	}

	restricted := make(map[string]bool, len(inv.LibraryIDs))
	for _, lid := range inv.LibraryIDs {
		restricted[lid] = true
	}

	var externalIDs []string
	allEnabled := true
	for _, l := range libs {
		if len(inv.LibraryIDs) > 0 {
			if restricted[l.ID] {
				externalIDs = append(externalIDs, l.ExternalID)
			}
			continue
		}
		if l.Enabled {
			externalIDs = append(externalIDs, l.ExternalID)
		} else {
			allEnabled = false
		}
	}
	// Unrestricted grant with every library enabled: pass the empty set,
	// which the clients translate to "all libraries" and which keeps the
	// grant tracking new libraries automatically.
	if len(inv.LibraryIDs) == 0 && allEnabled {
		externalIDs = nil
	}

	return media.UserPolicy{
		LibraryIDs:     externalIDs,
		AllowDownloads: inv.AllowDownloads,
		AllowLiveTV:    inv.AllowLiveTV,
	}, nil
}

func (s *InvitationService) findOrCreateIdentity(ctx context.Context, req RedeemRequest) (*models.Identity, error) {
	if req.Email != "" {
		identity, err := s.store.FindIdentityByEmail(ctx, req.Email)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	identity := &models.Identity{
		DisplayName: firstNonEmpty(req.DisplayName, req.Username),
	}
	if req.Email != "" {
		identity.Email = &req.Email
	}
	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Sweep logs and counts invitations that expired since the last pass.
// Expiry is enforced at Validate time; the sweep exists for visibility.
func (s *InvitationService) Sweep(ctx context.Context) error {
	invs, err := s.store.ListInvitations(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expired := 0
	for i := range invs {
		if !invs[i].Disabled && invs[i].Expired(now) {
			expired++
		}
	}
	if expired > 0 {
		logging.Debug().Int("expired", expired).Msg("Expired invitations present")
	}
	return nil
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvitationNotFound):
		return "invalid"
	case errors.Is(err, ErrInvitationExpired):
		return "expired"
	case errors.Is(err, ErrInvitationExhausted):
		return "exhausted"
	case errors.Is(err, ErrInvitationDisabled):
		return "disabled"
	default:
		return "failed"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
