package spotdiff

import (
	"context"
	"time"

	"github.com/pion/webrtc/v3"
)

const (
	DefaultLeadTime      = 1500 * time.Millisecond
	DefaultRoundDuration = 90 * time.Second
	DefaultExpirySkew    = 200 * time.Millisecond

	eventBuffer = 256
)

// RoundResult describes a finished round.
type RoundResult struct {
	RoomID    string
	Level     int
	Reason    string
	Scores    map[string]int
	Winners   []string
	StartedAt time.Time
	EndedAt   time.Time
}

// Recorder receives every finished round. Record must not block.
type Recorder interface {
	Record(RoundResult)
}

type noopRecorder struct{}

func (noopRecorder) Record(RoundResult) {}

type Options struct {
	Levels        Levels
	Level         int
	LeadTime      time.Duration
	RoundDuration time.Duration
	ExpirySkew    time.Duration
	ICEServers    []webrtc.ICEServer
	Recorder      Recorder
	Logf          func(format string, args ...any)
	Now           func() time.Time
}

type event any

type registerEvent struct {
	client *Client
}

type unregisterEvent struct {
	client *Client
}

type messageEvent struct {
	client *Client
	msg    Inbound
}

type expiryEvent struct {
	roomID string
	round  uint64
}

// Hub owns every room and connection. All state changes happen on the
// goroutine running Run, one event at a time.
type Hub struct {
	opts    Options
	rooms   *Registry
	clients map[string]*Client

	events chan event
	done   chan struct{}
}

func NewHub(opts Options) *Hub {
	if opts.Levels == nil {
		opts.Levels = DefaultLevels()
	}
	if opts.Level == 0 {
		opts.Level = 1
	}
	if opts.LeadTime <= 0 {
		opts.LeadTime = DefaultLeadTime
	}
	if opts.RoundDuration <= 0 {
		opts.RoundDuration = DefaultRoundDuration
	}
	if opts.ExpirySkew < 0 {
		opts.ExpirySkew = 0
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Hub{
		opts:    opts,
		rooms:   NewRegistry(opts.Level),
		clients: make(map[string]*Client),
		events:  make(chan event, eventBuffer),
		done:    make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case ev := <-h.events:
			h.apply(ev)
		}
	}
}

// enqueue hands ev to the loop. It reports false once the loop has stopped.
func (h *Hub) enqueue(ev event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) apply(ev event) {
	switch e := ev.(type) {
	case registerEvent:
		h.register(e.client)
	case unregisterEvent:
		h.disconnect(e.client)
	case messageEvent:
		h.dispatch(e.client, e.msg)
	case expiryEvent:
		h.expire(e)
	}
}

func (h *Hub) register(c *Client) {
	h.clients[c.id] = c
	h.deliver(c, WelcomeMessage{Type: "welcome", You: c.id})
	h.opts.Logf("ROOMS: Connection %s opened", c.id)
}

func (h *Hub) dispatch(c *Client, msg Inbound) {
	if c.closed {
		return
	}
	if _, ok := h.clients[c.id]; !ok {
		return
	}

	switch m := msg.(type) {
	case JoinRequest:
		h.join(c, m)
	case SignalRequest:
		h.relay(c, m)
	case ReadyRequest:
		h.markReady(c, m)
	case ClaimRequest:
		h.claim(c, m)
	}
}

func (h *Hub) join(c *Client, m JoinRequest) {
	room := h.rooms.GetOrCreate(m.RoomID)

	if !room.join(c.id, m.Name) {
		h.deliver(c, RoomFullMessage{Type: "room-full", RoomID: room.id})
		h.opts.Logf("ROOMS: Connection %s refused from full room %q", c.id, room.id)
		return
	}

	c.rooms[room.id] = struct{}{}
	roster := room.roster()

	h.deliver(c, JoinedMessage{
		Type:       "joined",
		RoomID:     room.id,
		You:        c.id,
		Roster:     roster,
		ICEServers: h.opts.ICEServers,
	})

	for _, id := range room.others(c.id) {
		if peer, ok := h.clients[id]; ok {
			h.deliver(peer, PeerJoinedMessage{
				Type:   "peer-joined",
				RoomID: room.id,
				Peer:   c.id,
				Roster: roster,
			})
		}
	}

	h.opts.Logf("ROOMS: Player %q (%s) joined %q", room.names[c.id], c.id, room.id)
}

// relay forwards an opaque signaling payload. Unknown targets are dropped.
func (h *Hub) relay(c *Client, m SignalRequest) {
	to, ok := h.clients[m.To]
	if !ok {
		h.opts.Logf("SIGNAL: Dropped %s from %s to unknown %s", signalKind(m.Data), c.id, m.To)
		return
	}

	h.deliver(to, SignalMessage{Type: "signal", From: c.id, Data: m.Data})
	h.opts.Logf("SIGNAL: Relayed %s from %s to %s", signalKind(m.Data), c.id, m.To)
}

func (h *Hub) markReady(c *Client, m ReadyRequest) {
	room, ok := h.rooms.Get(m.RoomID)
	if !ok || !room.isMember(c.id) {
		return
	}

	if room.markReady(c.id) {
		h.startRound(room)
	}
}

func (h *Hub) startRound(room *Room) {
	level, ok := h.opts.Levels[room.level]
	if !ok {
		h.opts.Logf("ROOMS: Room %q has unknown level %d", room.id, room.level)
		return
	}

	now := h.opts.Now()
	startsAt := now.Add(h.opts.LeadTime)
	endsAt := startsAt.Add(h.opts.RoundDuration)

	room.stopTimer()
	room.begin(h.rooms.nextRound(), level, startsAt, endsAt)

	roomID, round := room.id, room.round
	room.timer = time.AfterFunc(endsAt.Sub(now)+h.opts.ExpirySkew, func() {
		h.enqueue(expiryEvent{roomID: roomID, round: round})
	})

	h.broadcast(room, StartMessage{
		Type:     "start",
		RoomID:   room.id,
		Level:    room.level,
		StartsAt: startsAt.UnixMilli(),
		EndsAt:   endsAt.UnixMilli(),
		Image:    level.Image,
		Base:     level.Base,
		Spots:    room.spots,
		Total:    room.total,
	})

	h.opts.Logf("ROOMS: Round %d started in %q with %d targets", round, room.id, room.total)
}

func (h *Hub) claim(c *Client, m ClaimRequest) {
	room, ok := h.rooms.Get(m.RoomID)
	if !ok {
		return
	}

	targetID := m.target()

	switch room.claim(c.id, targetID) {
	case claimIgnored:
		return
	case claimLocked:
		h.deliver(c, RejectMessage{
			Type:     "reject",
			RoomID:   room.id,
			TargetID: targetID,
			Reason:   "locked",
		})
	case claimWon:
		h.broadcast(room, LockMessage{
			Type:     "lock",
			RoomID:   room.id,
			TargetID: targetID,
			WinnerID: c.id,
			LockedAt: h.opts.Now().UnixMilli(),
			Scores:   room.scoreSnapshot(),
		})

		if room.exhausted() {
			h.endRound(room, ReasonAllLocked)
		}
	}
}

// endRound is a no-op when the room has no active round.
func (h *Hub) endRound(room *Room, reason string) {
	startedAt := room.startsAt

	scores, winners, ok := room.finish()
	if !ok {
		return
	}

	endedAt := h.opts.Now()

	h.opts.Recorder.Record(RoundResult{
		RoomID:    room.id,
		Level:     room.level,
		Reason:    reason,
		Scores:    scores,
		Winners:   winners,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	})

	h.broadcast(room, RoundOverMessage{
		Type:    "round-over",
		RoomID:  room.id,
		Scores:  scores,
		Winners: winners,
		Reason:  reason,
		EndedAt: endedAt.UnixMilli(),
	})

	h.opts.Logf("ROOMS: Round %d over in %q (%s), winners %v", room.round, room.id, reason, winners)
}

// expire handles a round timer. Timers for removed rooms or superseded
// rounds do nothing.
func (h *Hub) expire(e expiryEvent) {
	room, ok := h.rooms.Get(e.roomID)
	if !ok || room.round != e.round {
		return
	}

	h.endRound(room, ReasonTimeout)
}

func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	h.evict(c)

	for roomID := range c.rooms {
		if room, ok := h.rooms.Get(roomID); ok {
			h.leave(room, c.id)
		}
	}
	clear(c.rooms)

	h.opts.Logf("ROOMS: Connection %s closed", c.id)
}

func (h *Hub) leave(room *Room, connID string) {
	if !room.leave(connID) {
		return
	}

	roster := room.roster()
	h.broadcast(room, PeerLeftMessage{
		Type:   "peer-left",
		RoomID: room.id,
		PeerID: connID,
		Roster: roster,
	})

	if room.started {
		h.endRound(room, ReasonPeerLeft)
	}

	if room.empty() {
		h.rooms.Remove(room.id)
		h.opts.Logf("ROOMS: Room %q removed", room.id)
	}
}

func (h *Hub) broadcast(room *Room, msg any) {
	for _, id := range room.players {
		if c, ok := h.clients[id]; ok {
			h.deliver(c, msg)
		}
	}
}

// deliver never blocks the loop. A connection that cannot keep up is closed.
func (h *Hub) deliver(c *Client, msg any) {
	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.opts.Logf("ROOMS: Connection %s too slow, closing", c.id)
		h.evict(c)
	}
}

func (h *Hub) evict(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (h *Hub) shutdown() {
	for id := range h.rooms.rooms {
		h.rooms.Remove(id)
	}
	for _, c := range h.clients {
		h.evict(c)
	}
}
