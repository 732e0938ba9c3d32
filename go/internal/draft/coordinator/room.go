package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/pickorder"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// MaxChatLength is the longest chat message accepted, in runes.
const MaxChatLength = 500

// RoomConfig describes a room to create.
type RoomConfig struct {
	room.Settings
	ExpiryPolicy ExpiryPolicy
	// PlayerPool is the ranked list of draftable players used by ExpiryAutoPick.
	PlayerPool []string
	// Participants pre-registers users as offline, keyed by user id.
	Participants map[string]int
}

// Validate checks the room settings and policy.
func (c RoomConfig) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.ExpiryPolicy != "" && !c.ExpiryPolicy.Valid() {
		return errors.New("unsupported expiry policy " + string(c.ExpiryPolicy))
	}
	for userID, teamID := range c.Participants {
		if teamID < 1 || teamID > c.TeamCount {
			return errors.New("participant " + userID + " has a team outside the league")
		}
	}
	return nil
}

type command interface{ isRoomCmd() }

type joinCmd struct {
	userID string
	teamID int
	reply  chan error
}

type leaveCmd struct {
	userID string
	reply  chan error
}

type pickResult struct {
	pick models.DraftPick
	err  error
}

type pickCmd struct {
	teamID   int
	playerID string
	reply    chan pickResult
}

type toggleResult struct {
	paused bool
	err    error
}

type toggleCmd struct {
	reply chan toggleResult
}

type chatResult struct {
	msg models.ChatMessage
	err error
}

type chatCmd struct {
	userID  string
	text    string
	isTrade bool
	reply   chan chatResult
}

type startCmd struct {
	reply chan error
}

type snapshotCmd struct {
	reply chan models.Room
}

type tickCmd struct {
	reply chan struct{}
}

func (joinCmd) isRoomCmd()     {}
func (leaveCmd) isRoomCmd()    {}
func (pickCmd) isRoomCmd()     {}
func (toggleCmd) isRoomCmd()   {}
func (chatCmd) isRoomCmd()     {}
func (startCmd) isRoomCmd()    {}
func (snapshotCmd) isRoomCmd() {}
func (tickCmd) isRoomCmd()     {}

// Room is the authority for one league's draft. Every command and every clock tick passes
// through a single inbox and is applied by one goroutine, in arrival order.
type Room struct {
	leagueID string
	state    models.Room
	policy   ExpiryPolicy
	pool     []string
	assigned map[string]int
	strat    AutoPickStrategy
	out      Broadcaster
	clock    clockwork.Clock
	interval time.Duration

	inbox  chan command
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newRoom(parent context.Context, cfg RoomConfig, o options, out Broadcaster) *Room {
	ctx, cancel := context.WithCancel(parent)

	state := room.New(cfg.Settings)
	assigned := make(map[string]int, len(cfg.Participants))
	for userID, teamID := range cfg.Participants {
		state.Participants[userID] = models.Participant{UserID: userID, TeamID: teamID}
		assigned[userID] = teamID
	}

	policy := cfg.ExpiryPolicy
	if policy == "" {
		policy = ExpirySkip
	}

	r := &Room{
		leagueID: cfg.LeagueID,
		state:    state,
		policy:   policy,
		pool:     append([]string(nil), cfg.PlayerPool...),
		assigned: assigned,
		strat:    o.strategy,
		out:      out,
		clock:    o.clock,
		interval: o.tickInterval,
		inbox:    make(chan command, o.inboxSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go r.loop()
	if r.interval > 0 {
		go r.runTicker()
	}
	return r
}

// LeagueID returns the league this room belongs to.
func (r *Room) LeagueID() string { return r.leagueID }

// Close stops the room loop and its ticker. Pending callers get ErrRoomClosed.
func (r *Room) Close() {
	r.cancel()
	<-r.done
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			log.Debug().Str("league_id", r.leagueID).Msg("room loop stopped")
			return
		case c := <-r.inbox:
			r.handle(c)
		}
	}
}

func (r *Room) runTicker() {
	t := r.clock.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.Chan():
			select {
			case r.inbox <- tickCmd{}:
			case <-r.ctx.Done():
				return
			}
		}
	}
}

func (r *Room) handle(c command) {
	switch cmd := c.(type) {
	case joinCmd:
		cmd.reply <- r.join(cmd.userID, cmd.teamID)
	case leaveCmd:
		cmd.reply <- r.leave(cmd.userID)
	case pickCmd:
		p, err := r.submitPick(cmd.teamID, cmd.playerID)
		cmd.reply <- pickResult{pick: p, err: err}
	case toggleCmd:
		paused, err := r.togglePause()
		cmd.reply <- toggleResult{paused: paused, err: err}
	case chatCmd:
		m, err := r.sendChat(cmd.userID, cmd.text, cmd.isTrade)
		cmd.reply <- chatResult{msg: m, err: err}
	case startCmd:
		cmd.reply <- r.start()
	case snapshotCmd:
		cmd.reply <- r.state.Clone()
	case tickCmd:
		r.tick()
		if cmd.reply != nil {
			cmd.reply <- struct{}{}
		}
	}
}

// send enqueues c, giving up when ctx ends or the room closes.
func (r *Room) send(ctx context.Context, c command) error {
	select {
	case r.inbox <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRoomClosed
	}
}

func await[T any](ctx context.Context, r *Room, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-r.done:
		return zero, ErrRoomClosed
	}
}

// Join marks userID online for teamID. teamID 0 joins as an observer.
func (r *Room) Join(ctx context.Context, userID string, teamID int) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, joinCmd{userID: userID, teamID: teamID, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return res
}

// Leave marks userID offline. The draft clock keeps running.
func (r *Room) Leave(ctx context.Context, userID string) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, leaveCmd{userID: userID, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return res
}

// SubmitPick commits playerID for teamID if teamID is on the clock.
func (r *Room) SubmitPick(ctx context.Context, teamID int, playerID string) (models.DraftPick, error) {
	reply := make(chan pickResult, 1)
	if err := r.send(ctx, pickCmd{teamID: teamID, playerID: playerID, reply: reply}); err != nil {
		return models.DraftPick{}, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return models.DraftPick{}, err
	}
	return res.pick, res.err
}

// TogglePause pauses or resumes the pick clock and reports whether the room is now paused.
func (r *Room) TogglePause(ctx context.Context) (bool, error) {
	reply := make(chan toggleResult, 1)
	if err := r.send(ctx, toggleCmd{reply: reply}); err != nil {
		return false, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return false, err
	}
	return res.paused, res.err
}

// SendChat appends a message to the chat window and broadcasts it.
func (r *Room) SendChat(ctx context.Context, userID, text string, isTradeProposal bool) (models.ChatMessage, error) {
	reply := make(chan chatResult, 1)
	if err := r.send(ctx, chatCmd{userID: userID, text: text, isTrade: isTradeProposal, reply: reply}); err != nil {
		return models.ChatMessage{}, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return res.msg, res.err
}

// Start moves a WAITING room to ACTIVE regardless of its schedule.
func (r *Room) Start(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, startCmd{reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return err
	}
	return res
}

// Snapshot returns a copy of the authoritative state.
func (r *Room) Snapshot(ctx context.Context) (models.Room, error) {
	reply := make(chan models.Room, 1)
	if err := r.send(ctx, snapshotCmd{reply: reply}); err != nil {
		return models.Room{}, err
	}
	return await(ctx, r, reply)
}

// Tick runs one clock step through the inbox and waits for it to be applied.
func (r *Room) Tick(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := r.send(ctx, tickCmd{reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, r, reply)
	return err
}

func (r *Room) now() time.Time {
	return r.clock.Now().UTC()
}

func (r *Room) broadcast(t events.Type, payload interface{}) {
	env, err := events.NewEnvelope(t, payload)
	if err != nil {
		log.Error().Err(err).Str("league_id", r.leagueID).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	r.out.Broadcast(r.leagueID, env)
}

func (r *Room) broadcastStatus() {
	r.broadcast(events.TypeDraftStatus, room.StatusPayload(r.state))
}

func (r *Room) join(userID string, teamID int) error {
	if strings.TrimSpace(userID) == "" {
		return reject(events.ReasonInvalidCommand, "user id is required")
	}
	if teamID < 0 || teamID > r.state.TeamCount {
		return reject(events.ReasonInvalidCommand, "team %d is not in this league", teamID)
	}
	if want, ok := r.assigned[userID]; ok && want != teamID {
		return reject(events.ReasonInvalidCommand, "user %s is assigned to team %d", userID, want)
	}

	payload := events.PresencePayload{
		LeagueID:  r.leagueID,
		UserID:    userID,
		TeamID:    teamID,
		Timestamp: r.now(),
	}
	r.state = room.ApplyUserJoined(r.state, payload)
	r.broadcast(events.TypeUserJoined, payload)

	log.Info().
		Str("league_id", r.leagueID).
		Str("user_id", userID).
		Int("team_id", teamID).
		Msg("participant joined")

	if r.state.Status == models.RoomStatusWaiting && r.scheduleReached() {
		r.activate()
	}
	r.broadcastStatus()
	return nil
}

func (r *Room) leave(userID string) error {
	if _, ok := r.state.Participants[userID]; !ok {
		return nil
	}
	payload := events.PresencePayload{
		LeagueID:  r.leagueID,
		UserID:    userID,
		TeamID:    r.state.Participants[userID].TeamID,
		Timestamp: r.now(),
	}
	r.state = room.ApplyUserLeft(r.state, payload)
	r.broadcast(events.TypeUserLeft, payload)

	log.Info().Str("league_id", r.leagueID).Str("user_id", userID).Msg("participant left")
	return nil
}

func (r *Room) start() error {
	if r.state.Status != models.RoomStatusWaiting {
		return reject(events.ReasonInvalidCommand, "draft already %s", strings.ToLower(string(r.state.Status)))
	}
	r.activate()
	r.broadcastStatus()
	return nil
}

func (r *Room) scheduleReached() bool {
	if r.state.ScheduledAt == nil {
		return false
	}
	return !r.clock.Now().Before(*r.state.ScheduledAt)
}

// activate puts the first open slot on the clock. A room with no open slots completes.
func (r *Room) activate() {
	next := r.state.Clone()
	slot, done := room.Position(next)
	if done {
		r.state = complete(next)
		return
	}
	next.Status = models.RoomStatusActive
	next.IsPaused = false
	next.CurrentRound = slot.Round
	next.CurrentPick = slot.Pick
	next.CurrentPicker = slot.TeamID
	next.TimeRemainingSeconds = next.TimePerPickSeconds
	r.state = next

	log.Info().
		Str("league_id", r.leagueID).
		Int("team_count", next.TeamCount).
		Int("total_rounds", next.TotalRounds).
		Int("current_picker", next.CurrentPicker).
		Msg("draft started")
}

func complete(s models.Room) models.Room {
	s.Status = models.RoomStatusCompleted
	s.IsPaused = false
	s.CurrentPicker = 0
	s.TimeRemainingSeconds = 0
	return s
}

func (r *Room) submitPick(teamID int, playerID string) (models.DraftPick, error) {
	switch {
	case r.state.IsPaused:
		return models.DraftPick{}, reject(events.ReasonPaused, "draft is paused")
	case r.state.Status != models.RoomStatusActive:
		return models.DraftPick{}, reject(events.ReasonDraftNotActive, "draft is %s", strings.ToLower(string(r.state.Status)))
	case strings.TrimSpace(playerID) == "":
		return models.DraftPick{}, reject(events.ReasonInvalidCommand, "player id is required")
	case r.state.HasPlayer(playerID):
		return models.DraftPick{}, reject(events.ReasonAlreadyPicked, "player %s has already been drafted", playerID)
	case teamID != r.state.CurrentPicker:
		return models.DraftPick{}, reject(events.ReasonNotYourTurn, "team %d is on the clock, not team %d", r.state.CurrentPicker, teamID)
	}
	return r.commitPick(teamID, playerID, false), nil
}

// commitPick records a validated pick and advances the clock to the next open slot.
func (r *Room) commitPick(teamID int, playerID string, auto bool) models.DraftPick {
	slot, _ := room.Position(r.state)
	payload := events.PickMadePayload{
		LeagueID:    r.leagueID,
		TeamID:      teamID,
		PlayerID:    playerID,
		PickNumber:  slot.Overall,
		Round:       slot.Round,
		PickInRound: slot.Pick,
		AutoPick:    auto,
		Timestamp:   r.now(),
	}
	next := r.positionAfter(slot.Overall)
	payload.Status = string(next.status)
	payload.CurrentRound = next.round
	payload.CurrentPick = next.pick
	payload.CurrentPicker = next.picker
	payload.TimeRemaining = next.remaining
	r.state = room.ApplyPickMade(r.state, payload)
	r.broadcast(events.TypePickMade, payload)

	log.Info().
		Str("league_id", r.leagueID).
		Int("team_id", teamID).
		Str("player_id", playerID).
		Int("overall_pick", slot.Overall).
		Bool("auto_pick", auto).
		Msg("pick committed")

	if r.state.Status == models.RoomStatusCompleted {
		r.finish()
	}
	return r.state.Picks[len(r.state.Picks)-1]
}

type position struct {
	status    models.RoomStatus
	overall   int
	round     int
	pick      int
	picker    int
	remaining int
}

// positionAfter returns the position that follows overall, or the completed position after the last slot.
func (r *Room) positionAfter(overall int) position {
	total := r.state.TotalPicks()
	if overall >= total {
		last := pickorder.SlotFor(total, r.state.TeamCount, r.state.DraftFormat)
		return position{status: models.RoomStatusCompleted, round: last.Round, pick: last.Pick}
	}
	next := pickorder.SlotFor(overall+1, r.state.TeamCount, r.state.DraftFormat)
	return position{
		status:    models.RoomStatusActive,
		overall:   next.Overall,
		round:     next.Round,
		pick:      next.Pick,
		picker:    next.TeamID,
		remaining: r.state.TimePerPickSeconds,
	}
}

func (r *Room) finish() {
	log.Info().
		Str("league_id", r.leagueID).
		Int("picks", len(r.state.Picks)).
		Int("skipped", len(r.state.SkippedPicks)).
		Msg("draft completed")
	r.broadcastStatus()
}

func (r *Room) togglePause() (bool, error) {
	var status models.RoomStatus
	switch r.state.Status {
	case models.RoomStatusActive:
		status = models.RoomStatusPaused
	case models.RoomStatusPaused:
		status = models.RoomStatusActive
	default:
		return false, reject(events.ReasonDraftNotActive, "draft is %s", strings.ToLower(string(r.state.Status)))
	}

	r.broadcastTimer(r.current(status), 0)
	log.Info().
		Str("league_id", r.leagueID).
		Bool("paused", r.state.IsPaused).
		Int("time_remaining", r.state.TimeRemainingSeconds).
		Msg("draft clock toggled")
	return r.state.IsPaused, nil
}

// broadcastTimer applies and broadcasts a TIMER_UPDATE carrying pos.
func (r *Room) broadcastTimer(pos position, skipped int) {
	payload := events.TimerUpdatePayload{
		LeagueID:      r.leagueID,
		Status:        string(pos.status),
		TimeRemaining: pos.remaining,
		CurrentPicker: pos.picker,
		PickNumber:    pos.overall,
		CurrentRound:  pos.round,
		CurrentPick:   pos.pick,
		IsPaused:      pos.status == models.RoomStatusPaused,
		SkippedPick:   skipped,
	}
	r.state = room.ApplyTimerUpdate(r.state, payload)
	r.broadcast(events.TypeTimerUpdate, payload)
}

// current is the position the room is in now, with status overridden.
func (r *Room) current(status models.RoomStatus) position {
	return position{
		status:    status,
		overall:   r.state.SlotsUsed() + 1,
		round:     r.state.CurrentRound,
		pick:      r.state.CurrentPick,
		picker:    r.state.CurrentPicker,
		remaining: r.state.TimeRemainingSeconds,
	}
}

func (r *Room) sendChat(userID, text string, isTrade bool) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	switch {
	case r.state.Status == models.RoomStatusCompleted:
		return models.ChatMessage{}, reject(events.ReasonDraftNotActive, "draft is completed")
	case strings.TrimSpace(userID) == "":
		return models.ChatMessage{}, reject(events.ReasonInvalidCommand, "user id is required")
	case text == "":
		return models.ChatMessage{}, reject(events.ReasonInvalidCommand, "message is empty")
	case utf8.RuneCountInString(text) > MaxChatLength:
		return models.ChatMessage{}, reject(events.ReasonInvalidCommand, "message is longer than %d characters", MaxChatLength)
	}

	payload := events.ChatMessagePayload{
		ID:              uuid.NewString(),
		LeagueID:        r.leagueID,
		UserID:          userID,
		Message:         text,
		Timestamp:       r.now(),
		IsTradeProposal: isTrade,
	}
	r.state = room.ApplyChat(r.state, payload)
	r.broadcast(events.TypeChatMessage, payload)
	return r.state.ChatMessages[len(r.state.ChatMessages)-1], nil
}

func (r *Room) tick() {
	if r.state.Status == models.RoomStatusWaiting {
		if r.scheduleReached() && r.anyoneOnline() {
			r.activate()
			r.broadcastStatus()
		}
		return
	}
	if r.state.Status != models.RoomStatusActive || r.state.IsPaused {
		return
	}

	pos := r.current(r.state.Status)
	pos.remaining--
	if pos.remaining > 0 {
		r.broadcastTimer(pos, 0)
		return
	}
	r.expire()
}

func (r *Room) anyoneOnline() bool {
	for _, p := range r.state.Participants {
		if p.IsOnline {
			return true
		}
	}
	return false
}

// expire runs the forced advancement policy for the team on the clock.
func (r *Room) expire() {
	slot, _ := room.Position(r.state)
	teamID := r.state.CurrentPicker

	if r.policy == ExpiryAutoPick && r.strat != nil {
		available := AvailablePlayers(r.state, r.pool)
		playerID, err := r.strat.SelectPlayer(r.ctx, r.state.Clone(), teamID, available)
		if err == nil && playerID != "" && !r.state.HasPlayer(playerID) {
			r.commitPick(teamID, playerID, true)
			return
		}
		log.Warn().
			Err(err).
			Str("league_id", r.leagueID).
			Int("team_id", teamID).
			Msg("auto-pick failed, skipping slot")
	}

	r.broadcastTimer(r.positionAfter(slot.Overall), slot.Overall)

	log.Info().
		Str("league_id", r.leagueID).
		Int("team_id", teamID).
		Int("overall_pick", slot.Overall).
		Msg("pick clock expired, slot skipped")

	if r.state.Status == models.RoomStatusCompleted {
		r.finish()
	}
}
