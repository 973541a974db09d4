package lobby

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/models"
	"github.com/jason-s-yu/heartline/internal/week"
)

// MaxPunishmentLength bounds submitted punishment text, in runes.
const MaxPunishmentLength = 280

func (s *Service) currentWeek(ctx context.Context, l *models.Lobby) (int, error) {
	return s.weeks.Resolve(ctx, l.ID, week.ParamsOf(l))
}

// SubmitPunishment adds a candidate punishment to the current week.
func (s *Service) SubmitPunishment(ctx context.Context, actor models.Actor, text string) (*models.LobbyPunishment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.InvalidInput, "text is required")
	}
	if utf8.RuneCountInString(text) > MaxPunishmentLength {
		return nil, apperr.Newf(apperr.InvalidInput, "text must be at most %d characters", MaxPunishmentLength)
	}
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	l, err := s.mutableLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	wk, err := s.currentWeek(ctx, l)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListPunishments(ctx, l.ID, wk)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.WeekStatus.Concluded() {
			return nil, apperr.Newf(apperr.Conflict, "week %d already has its punishment", wk)
		}
	}

	p := &models.LobbyPunishment{
		ID:         uuid.New(),
		LobbyID:    l.ID,
		Week:       wk,
		Text:       text,
		CreatedBy:  actor.HistoryActor(),
		WeekStatus: models.WeekPendingPunishment,
		CreatedAt:  s.now(),
	}
	ev := s.event(actor, models.EventPunishmentSubmitted, nil, map[string]interface{}{
		"week":   wk,
		"itemId": p.ID.String(),
	})
	if err := s.store.InsertPunishment(ctx, p, ev); err != nil {
		return nil, err
	}
	s.invalidate(ctx, l.ID)
	return p, nil
}

// SpinPunishment picks the week's punishment at random. Roulette lobbies only,
// during transition_spin, once per week.
func (s *Service) SpinPunishment(ctx context.Context, actor models.Actor) (*models.PunishmentSpinEvent, error) {
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	l, err := s.mutableLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	if !l.IsRoulette() {
		return nil, apperr.New(apperr.Conflict, "spins are only available in challenge roulette lobbies")
	}
	if l.Status != models.StatusTransitionSpin {
		return nil, apperr.WithCode(apperr.Conflict, apperr.CodeStageTransition, "spins are only allowed during transition_spin")
	}
	wk, err := s.currentWeek(ctx, l)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListPunishments(ctx, l.ID, wk)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Newf(apperr.NotFound, "no punishments submitted for week %d", wk)
	}

	winner := items[s.pick(len(items))]
	spin := &models.PunishmentSpinEvent{
		SpinID:       uuid.New(),
		LobbyID:      l.ID,
		Week:         wk,
		WinnerItemID: winner.ID,
		StartedAt:    s.now(),
	}
	ev := s.event(actor, models.EventPunishmentSpun, nil, map[string]interface{}{
		"week":   wk,
		"itemId": winner.ID.String(),
	})
	if err := s.store.RecordSpin(ctx, spin, ev); err != nil {
		return nil, err
	}
	s.invalidate(ctx, l.ID)
	return spin, nil
}

// LockPunishment makes itemID the week's active punishment. In roulette mode
// this also ends the transition.
func (s *Service) LockPunishment(ctx context.Context, actor models.Actor, itemID uuid.UUID) (*models.LobbyPunishment, error) {
	if itemID == uuid.Nil {
		return nil, apperr.New(apperr.InvalidInput, "itemId is required")
	}
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	l, err := s.mutableLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	ev := s.event(actor, models.EventPunishmentLocked, nil, map[string]interface{}{"itemId": itemID.String()})
	item, err := s.store.LockPunishment(ctx, l.ID, itemID, ev)
	if err != nil {
		return nil, err
	}
	if l.IsRoulette() && l.Status == models.StatusTransitionSpin {
		s.followStage(ctx, actor, l, models.StatusActive, "punishment_locked")
	}
	s.invalidate(ctx, l.ID)
	return item, nil
}

// UnlockPunishment reverts the latest locked punishment to awaiting
// confirmation. In roulette mode the lobby goes back to transition_spin.
func (s *Service) UnlockPunishment(ctx context.Context, actor models.Actor) (*models.LobbyPunishment, error) {
	if err := requireOwner(actor); err != nil {
		return nil, err
	}
	l, err := s.mutableLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	latest, statuses, err := s.store.LatestPunishmentWeek(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	active := false
	for _, st := range statuses {
		if st == models.WeekActive {
			active = true
		}
	}
	if !active {
		return nil, apperr.New(apperr.Conflict, "no locked punishment to unlock")
	}

	ev := s.event(actor, models.EventPunishmentUnlocked, nil, map[string]interface{}{"week": latest})
	item, err := s.store.UnlockPunishment(ctx, l.ID, latest, ev)
	if err != nil {
		return nil, err
	}
	if l.IsRoulette() && l.Status == models.StatusActive {
		s.followStage(ctx, actor, l, models.StatusTransitionSpin, "punishment_unlocked")
	}
	s.invalidate(ctx, l.ID)
	return item, nil
}

// ResolveAll completes every active punishment of the lobby.
func (s *Service) ResolveAll(ctx context.Context, actor models.Actor) (int, error) {
	if err := requireOwner(actor); err != nil {
		return 0, err
	}
	l, err := s.mutableLobby(ctx, actor.LobbyID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.ResolveActivePunishments(ctx, l.ID, s.event(actor, models.EventPunishmentsResolved, nil, nil))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, apperr.New(apperr.Conflict, "no active punishment to resolve")
	}
	s.invalidate(ctx, l.ID)
	return n, nil
}

// GetPunishments builds the punishment view of the current week.
func (s *Service) GetPunishments(ctx context.Context, actor models.Actor) (*models.LobbyPunishmentsResponse, error) {
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	l, err := s.store.GetLobby(ctx, actor.LobbyID)
	if err != nil {
		return nil, err
	}
	wk, err := s.currentWeek(ctx, l)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListPunishments(ctx, l.ID, wk)
	if err != nil {
		return nil, err
	}
	spin, err := s.store.GetSpinEvent(ctx, l.ID, wk)
	if err != nil {
		return nil, err
	}
	return BuildPunishmentsResponse(l, wk, items, spin), nil
}

// BuildPunishmentsResponse derives the response fields from the week's rows.
func BuildPunishmentsResponse(l *models.Lobby, wk int, items []models.LobbyPunishment, spin *models.PunishmentSpinEvent) *models.LobbyPunishmentsResponse {
	if items == nil {
		items = []models.LobbyPunishment{}
	}
	resp := &models.LobbyPunishmentsResponse{
		Week:      wk,
		Items:     items,
		SpinEvent: spin,
	}
	for i := range items {
		if items[i].WeekStatus == models.WeekActive {
			active := items[i]
			resp.Active = &active
			resp.Locked = active.Locked
			break
		}
	}

	status := AggregateWeekStatus(items)
	if status != "" {
		str := string(status)
		resp.WeekStatus = &str
	}

	hasItems := len(items) > 0
	resp.NeedsSpin = l.IsRoulette() && l.Status == models.StatusTransitionSpin &&
		hasItems && spin == nil && resp.Active == nil
	resp.WeekContext = &models.WeekContext{
		Week:         wk,
		HasItems:     hasItems,
		HasSpinEvent: spin != nil,
		HasActive:    resp.Active != nil,
		Status:       string(l.Status),
	}
	return resp
}

// AggregateWeekStatus summarises a week: ACTIVE beats COMPLETE beats
// PENDING_CONFIRMATION beats PENDING_PUNISHMENT. An empty week has no status.
func AggregateWeekStatus(items []models.LobbyPunishment) models.WeekStatus {
	rank := map[models.WeekStatus]int{
		models.WeekUnknown:             1,
		models.WeekPendingPunishment:   2,
		models.WeekPendingConfirmation: 3,
		models.WeekComplete:            4,
		models.WeekActive:              5,
	}
	var best models.WeekStatus
	for _, it := range items {
		if rank[it.WeekStatus] > rank[best] {
			best = it.WeekStatus
		}
	}
	return best
}
