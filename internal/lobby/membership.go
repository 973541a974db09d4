package lobby

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
)

// CanJoin applies the invite gate. Members and owners always pass.
func CanJoin(l *models.Lobby, actor models.Actor, token string, now time.Time) error {
	if actor.IsMember || actor.IsOwner {
		return nil
	}
	inv := l.Invite
	if !inv.Enabled {
		return apperr.WithCode(apperr.Forbidden, apperr.CodeInviteDisabled, "invites are disabled for this lobby")
	}
	if inv.ExpiresAt != nil && !now.Before(*inv.ExpiresAt) {
		return apperr.WithCode(apperr.Forbidden, apperr.CodeInviteExpired, "invite has expired")
	}
	if inv.TokenRequired {
		if inv.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(inv.Token)) != 1 {
			return apperr.WithCode(apperr.Forbidden, apperr.CodeInviteTokenInvalid, "invite token is invalid")
		}
	}
	return nil
}

// Join adds the caller to the lobby behind the invite gate. Joining twice
// returns the existing player.
func (s *Service) Join(ctx context.Context, actor models.Actor, name, token string) (*models.Player, error) {
	if actor.UserID == uuid.Nil {
		return nil, apperr.New(apperr.Unauthorized, "authentication required")
	}
	l, err := s.store.GetLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	if err := CanJoin(l, actor, token, s.now()); err != nil {
		return nil, err
	}
	if actor.IsMember {
		return s.store.GetPlayer(ctx, l.ID, actor.PlayerID)
	}
	if l.Status == models.StatusCompleted {
		return nil, apperr.WithCode(apperr.Conflict, apperr.CodeSeasonCompleted, "season is already completed")
	}

	p := &models.Player{
		ID:       uuid.New(),
		LobbyID:  l.ID,
		UserID:   actor.UserID,
		Name:     strings.TrimSpace(name),
		Lives:    s.initialLives(l),
		JoinedAt: s.now(),
	}
	ev := &models.HistoryEvent{
		LobbyID:  l.ID,
		ActorID:  ref(p.ID),
		TargetID: ref(p.ID),
		Type:     models.EventPlayerJoined,
		Payload:  map[string]interface{}{"name": p.Name},
	}
	if err := s.store.InsertPlayer(ctx, p, ev); err != nil {
		return nil, err
	}
	s.invalidate(ctx, l.ID)
	return p, nil
}

func (s *Service) initialLives(l *models.Lobby) int {
	lives := l.InitialLives
	if lives <= 0 || lives > s.maxLives {
		lives = s.maxLives
	}
	return lives
}

// TransferOwnership hands the lobby to another member.
func (s *Service) TransferOwnership(ctx context.Context, actor models.Actor, to uuid.UUID) error {
	if to == uuid.Nil {
		return apperr.New(apperr.InvalidInput, "playerId is required")
	}
	if err := requireOwner(actor); err != nil {
		return err
	}
	if to == actor.PlayerID {
		return apperr.New(apperr.InvalidInput, "already the owner")
	}
	l, err := s.mutableLobby(ctx, actor.LobbyID)
	if err != nil {
		return err
	}
	ev := s.event(actor, models.EventOwnershipTransfer, ref(to), map[string]interface{}{
		"from": l.OwnerID.String(),
		"to":   to.String(),
	})
	if err := s.store.TransferOwnership(ctx, l.ID, l.OwnerID, to, ev); err != nil {
		return err
	}
	s.invalidate(ctx, l.ID)
	return nil
}

// SetReady stores the caller's own ready flag.
func (s *Service) SetReady(ctx context.Context, actor models.Actor, ready bool) error {
	if err := requireMember(actor); err != nil {
		return err
	}
	if actor.PlayerID == uuid.Nil {
		return apperr.New(apperr.Forbidden, "not a member of this lobby")
	}
	ev := s.event(actor, models.EventPlayerReady, ref(actor.PlayerID), map[string]interface{}{"ready": ready})
	if err := s.store.SetReady(ctx, actor.LobbyID, actor.PlayerID, ready, ev); err != nil {
		return err
	}
	s.invalidate(ctx, actor.LobbyID)
	return nil
}

// CreateLobbyInput carries the settings of a new lobby.
type CreateLobbyInput struct {
	Name               string              `json:"name"`
	OwnerName          string              `json:"ownerName"`
	Mode               models.LobbyMode    `json:"mode"`
	SeasonStart        *time.Time          `json:"seasonStart"`
	SeasonEnd          *time.Time          `json:"seasonEnd"`
	WeeklyTarget       int                 `json:"weeklyTarget"`
	InitialLives       int                 `json:"initialLives"`
	SuddenDeathEnabled bool                `json:"suddenDeathEnabled"`
	WeeklyAnte         int                 `json:"weeklyAnte"`
	AnteScalingEnabled bool                `json:"anteScalingEnabled"`
	AntePerPlayerBoost int                 `json:"antePerPlayerBoost"`
	Invite             models.InviteConfig `json:"invite"`
	InviteToken        string              `json:"inviteToken"`
}

// CreateLobby creates a pending lobby owned by the caller, who becomes its first player.
func (s *Service) CreateLobby(ctx context.Context, userID uuid.UUID, in CreateLobbyInput) (*models.Lobby, *models.Player, error) {
	if userID == uuid.Nil {
		return nil, nil, apperr.New(apperr.Unauthorized, "authentication required")
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, nil, apperr.New(apperr.InvalidInput, "name is required")
	case in.Mode != "" && in.Mode != models.ModeNormal && in.Mode != models.ModeRoulette:
		return nil, nil, apperr.Newf(apperr.InvalidInput, "unknown mode %q", in.Mode)
	case in.SeasonStart != nil && in.SeasonEnd != nil && in.SeasonEnd.Before(*in.SeasonStart):
		return nil, nil, apperr.New(apperr.InvalidInput, "seasonEnd must not be before seasonStart")
	case in.WeeklyTarget < 0 || in.WeeklyAnte < 0 || in.AntePerPlayerBoost < 0:
		return nil, nil, apperr.New(apperr.InvalidInput, "weeklyTarget, weeklyAnte and antePerPlayerBoost must not be negative")
	case in.InitialLives < 0 || in.InitialLives > s.maxLives:
		return nil, nil, apperr.Newf(apperr.InvalidInput, "initialLives must be between 1 and %d, or 0 for the default", s.maxLives)
	case in.Invite.TokenRequired && in.InviteToken == "":
		return nil, nil, apperr.New(apperr.InvalidInput, "inviteToken is required when tokenRequired is set")
	}
	if in.Mode == "" {
		in.Mode = models.ModeNormal
	}
	if in.WeeklyTarget == 0 {
		in.WeeklyTarget = 3
	}

	l := &models.Lobby{
		ID:                 uuid.New(),
		Name:               in.Name,
		SeasonNumber:       1,
		SeasonStart:        in.SeasonStart,
		SeasonEnd:          in.SeasonEnd,
		WeeklyTarget:       in.WeeklyTarget,
		InitialLives:       in.InitialLives,
		Mode:               in.Mode,
		Status:             models.StatusPending,
		SuddenDeathEnabled: in.SuddenDeathEnabled,
		WeeklyAnte:         in.WeeklyAnte,
		AnteScalingEnabled: in.AnteScalingEnabled,
		AntePerPlayerBoost: in.AntePerPlayerBoost,
		Invite:             in.Invite,
		CreatedAt:          s.now(),
	}
	l.Invite.Token = in.InviteToken
	l.InitialLives = s.initialLives(l)

	owner := &models.Player{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     strings.TrimSpace(in.OwnerName),
		Lives:    l.InitialLives,
		JoinedAt: l.CreatedAt,
	}
	ev := &models.HistoryEvent{
		LobbyID:  l.ID,
		ActorID:  ref(owner.ID),
		TargetID: ref(owner.ID),
		Type:     models.EventPlayerJoined,
		Payload:  map[string]interface{}{"name": owner.Name, "owner": true},
	}
	if err := s.store.CreateLobby(ctx, l, owner, ev); err != nil {
		return nil, nil, err
	}
	return l, owner, nil
}
