package spotdiff

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxPlayers    = 2
	maxNameLength = 20
	defaultName   = "Player"
)

const (
	ReasonTimeout   = "timeout"
	ReasonAllLocked = "all-locked"
	ReasonPeerLeft  = "peer-left"
)

type claimOutcome int

const (
	claimIgnored claimOutcome = iota
	claimLocked
	claimWon
)

// Room is one two-player match. Only the hub goroutine touches its fields.
type Room struct {
	id      string
	players []string // join order, at most maxPlayers
	names   map[string]string
	ready   map[string]struct{}

	started bool
	round   uint64
	level   int
	spots   []Target
	locked  map[string]struct{}
	scores  map[string]int
	total   int

	startsAt time.Time
	endsAt   time.Time
	timer    *time.Timer
}

func newRoom(id string, level int) *Room {
	return &Room{
		id:     id,
		names:  make(map[string]string),
		ready:  make(map[string]struct{}),
		level:  level,
		locked: make(map[string]struct{}),
		scores: make(map[string]int),
	}
}

func (r *Room) isMember(connID string) bool {
	for _, p := range r.players {
		if p == connID {
			return true
		}
	}
	return false
}

func (r *Room) empty() bool {
	return len(r.players) == 0
}

func (r *Room) roster() Roster {
	players := make([]RosterEntry, 0, len(r.players))
	for _, id := range r.players {
		name := r.names[id]
		if name == "" {
			name = defaultName
		}
		players = append(players, RosterEntry{ID: id, Name: name})
	}
	return Roster{Players: players}
}

// others returns every member except connID.
func (r *Room) others(connID string) []string {
	out := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if p != connID {
			out = append(out, p)
		}
	}
	return out
}

// join adds connID to the room. It is idempotent for existing members and
// refuses a third player without touching state.
func (r *Room) join(connID, name string) bool {
	if !r.isMember(connID) {
		if len(r.players) >= maxPlayers {
			return false
		}
		r.players = append(r.players, connID)
	}

	r.names[connID] = displayName(name)
	if _, ok := r.scores[connID]; !ok {
		r.scores[connID] = 0
	}

	return true
}

// leave drops connID and reports whether it was a member.
func (r *Room) leave(connID string) bool {
	dst := r.players[:0]
	found := false
	for _, p := range r.players {
		if p == connID {
			found = true
			continue
		}
		dst = append(dst, p)
	}
	r.players = dst

	delete(r.ready, connID)
	delete(r.names, connID)

	return found
}

// markReady records readiness and reports whether a round should start now.
func (r *Room) markReady(connID string) bool {
	r.ready[connID] = struct{}{}
	return len(r.ready) >= maxPlayers && !r.started
}

// begin resets per-round state for a fresh round of level. round comes from
// the registry and is never reused, even by a later room with the same id.
func (r *Room) begin(round uint64, level Level, startsAt, endsAt time.Time) {
	r.started = true
	r.round = round
	r.scores = make(map[string]int)
	r.locked = make(map[string]struct{})
	r.spots = level.Spots
	r.total = level.Distinct()
	r.startsAt = startsAt
	r.endsAt = endsAt
}

// finish closes the active round. It reports false when no round is active.
func (r *Room) finish() (map[string]int, []string, bool) {
	if !r.started {
		return nil, nil, false
	}

	scores := r.scoreSnapshot()

	r.stopTimer()
	clear(r.ready)
	r.started = false

	return scores, winnersFrom(scores), true
}

// claim locks targetID for connID. Lock and score change happen together.
func (r *Room) claim(connID, targetID string) claimOutcome {
	if !r.started || targetID == "" || !r.isMember(connID) || !(Level{Spots: r.spots}).Has(targetID) {
		return claimIgnored
	}
	if _, ok := r.locked[targetID]; ok {
		return claimLocked
	}

	r.locked[targetID] = struct{}{}
	r.scores[connID]++

	return claimWon
}

func (r *Room) exhausted() bool {
	return r.started && len(r.locked) >= r.total
}

func (r *Room) scoreSnapshot() map[string]int {
	out := make(map[string]int, len(r.scores))
	for id, n := range r.scores {
		out[id] = n
	}
	return out
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// winnersFrom returns every id tied for the top score. No points means no
// winners.
func winnersFrom(scores map[string]int) []string {
	top := 0
	for _, n := range scores {
		if n > top {
			top = n
		}
	}
	winners := []string{}
	if top <= 0 {
		return winners
	}
	for id, n := range scores {
		if n == top {
			winners = append(winners, id)
		}
	}
	sort.Strings(winners)
	return winners
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}

// Registry owns every live room, keyed by room id.
type Registry struct {
	rooms  map[string]*Room
	level  int
	rounds uint64
}

func NewRegistry(level int) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		level: level,
	}
}

func (g *Registry) GetOrCreate(id string) *Room {
	if room, ok := g.rooms[id]; ok {
		return room
	}
	room := newRoom(id, g.level)
	g.rooms[id] = room
	return room
}

// nextRound hands out round numbers unique across every room this registry
// has ever held.
func (g *Registry) nextRound() uint64 {
	g.rounds++
	return g.rounds
}

func (g *Registry) Get(id string) (*Room, bool) {
	room, ok := g.rooms[id]
	return room, ok
}

// Remove cancels the room's timer before dropping it.
func (g *Registry) Remove(id string) {
	room, ok := g.rooms[id]
	if !ok {
		return
	}
	room.stopTimer()
	delete(g.rooms, id)
}

func (g *Registry) Len() int {
	return len(g.rooms)
}
