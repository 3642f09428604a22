package spotdiff

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestWinnersFrom(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]int
		want   []string
	}{
		{"tie for top", map[string]int{"A": 3, "B": 3, "C": 1}, []string{"A", "B"}},
		{"no claims", map[string]int{}, []string{}},
		{"nil map", nil, []string{}},
		{"all zero", map[string]int{"A": 0, "B": 0}, []string{}},
		{"single leader", map[string]int{"A": 1, "B": 4}, []string{"B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := winnersFrom(tt.scores)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRoomJoinCapacity(t *testing.T) {
	room := newRoom("r1", 1)

	if !room.join("a", "Ada") || !room.join("b", "Ben") {
		t.Fatalf("expected first two joins to be accepted")
	}
	if room.join("c", "Cy") {
		t.Fatalf("expected third join to be refused")
	}
	if len(room.players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(room.players))
	}
	if _, ok := room.names["c"]; ok {
		t.Fatalf("refused join must not record a name")
	}
	if _, ok := room.scores["c"]; ok {
		t.Fatalf("refused join must not record a score")
	}
}

func TestRoomRejoinKeepsScore(t *testing.T) {
	room := newRoom("r1", 1)
	room.join("a", "Ada")
	room.join("b", "Ben")
	room.begin(1, DefaultLevels()[1], time.Now(), time.Now().Add(time.Minute))

	if outcome := room.claim("a", "sun"); outcome != claimWon {
		t.Fatalf("expected claim to win, got %v", outcome)
	}

	if !room.join("a", "Ada Again") {
		t.Fatalf("expected rejoin to be accepted")
	}
	if len(room.players) != 2 {
		t.Fatalf("expected rejoin not to duplicate membership, got %v", room.players)
	}
	if room.scores["a"] != 1 {
		t.Fatalf("expected score to survive rejoin, got %d", room.scores["a"])
	}
	if room.names["a"] != "Ada Again" {
		t.Fatalf("expected name to be overwritten, got %q", room.names["a"])
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName("   "); got != "Player" {
		t.Fatalf("expected default name, got %q", got)
	}
	if got := displayName("  Ada "); got != "Ada" {
		t.Fatalf("expected trimmed name, got %q", got)
	}
	long := strings.Repeat("é", 30)
	if got := displayName(long); got != strings.Repeat("é", maxNameLength) {
		t.Fatalf("expected name truncated to %d runes, got %q", maxNameLength, got)
	}
}

func TestRoomBeginCountsDistinctTargets(t *testing.T) {
	room := newRoom("r1", 1)
	level := DefaultLevels()[1]
	room.begin(1, level, time.Now(), time.Now().Add(time.Minute))

	if len(room.spots) != 10 {
		t.Fatalf("expected 10 spot descriptors, got %d", len(room.spots))
	}
	if room.total != 5 {
		t.Fatalf("expected 5 distinct targets, got %d", room.total)
	}
}

func TestRoomClaimArbitration(t *testing.T) {
	room := newRoom("r1", 1)
	room.join("a", "Ada")
	room.join("b", "Ben")

	if outcome := room.claim("a", "sun"); outcome != claimIgnored {
		t.Fatalf("expected claim before start to be ignored, got %v", outcome)
	}

	room.begin(1, DefaultLevels()[1], time.Now(), time.Now().Add(time.Minute))

	if outcome := room.claim("a", "sun"); outcome != claimWon {
		t.Fatalf("expected first claim to win, got %v", outcome)
	}
	if outcome := room.claim("b", "sun"); outcome != claimLocked {
		t.Fatalf("expected second claim to be locked out, got %v", outcome)
	}
	if outcome := room.claim("b", "moon"); outcome != claimIgnored {
		t.Fatalf("expected unknown target to be ignored, got %v", outcome)
	}
	if outcome := room.claim("z", "cow"); outcome != claimIgnored {
		t.Fatalf("expected non-member claim to be ignored, got %v", outcome)
	}
	if room.scores["a"] != 1 || room.scores["b"] != 0 {
		t.Fatalf("unexpected scores %v", room.scores)
	}
	if len(room.locked) != 1 {
		t.Fatalf("expected 1 locked target, got %d", len(room.locked))
	}
}

func TestRoomFinishIsIdempotent(t *testing.T) {
	room := newRoom("r1", 1)
	room.join("a", "Ada")
	room.join("b", "Ben")
	room.markReady("a")
	room.markReady("b")
	room.begin(1, DefaultLevels()[1], time.Now(), time.Now().Add(time.Minute))
	room.claim("b", "cow")

	scores, winners, ok := room.finish()
	if !ok {
		t.Fatalf("expected first finish to report a result")
	}
	if scores["b"] != 1 || !reflect.DeepEqual(winners, []string{"b"}) {
		t.Fatalf("unexpected result scores=%v winners=%v", scores, winners)
	}
	if len(room.ready) != 0 {
		t.Fatalf("expected ready set to be cleared")
	}
	if _, _, ok := room.finish(); ok {
		t.Fatalf("expected second finish to be a no-op")
	}
}

func TestRoomMarkReadyDoesNotRestartActiveRound(t *testing.T) {
	room := newRoom("r1", 1)
	room.join("a", "Ada")
	room.join("b", "Ben")

	if room.markReady("a") {
		t.Fatalf("one ready player must not start a round")
	}
	if !room.markReady("b") {
		t.Fatalf("two ready players must start a round")
	}
	room.begin(1, DefaultLevels()[1], time.Now(), time.Now().Add(time.Minute))
	if room.markReady("a") {
		t.Fatalf("ready during an active round must not start another")
	}
}

func TestRegistryRemoveStopsTimer(t *testing.T) {
	reg := NewRegistry(1)
	room := reg.GetOrCreate("r1")
	if again := reg.GetOrCreate("r1"); again != room {
		t.Fatalf("expected GetOrCreate to return the existing room")
	}

	fired := make(chan struct{}, 1)
	room.timer = time.AfterFunc(50*time.Millisecond, func() { fired <- struct{}{} })

	reg.Remove("r1")

	if reg.Len() != 0 {
		t.Fatalf("expected registry to be empty, got %d", reg.Len())
	}
	if room.timer != nil {
		t.Fatalf("expected timer reference to be cleared")
	}
	select {
	case <-fired:
		t.Fatalf("expected timer to be stopped")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRegistryRoundsAreNeverReused(t *testing.T) {
	reg := NewRegistry(1)
	level := DefaultLevels()[1]

	first := reg.GetOrCreate("r1")
	first.begin(reg.nextRound(), level, time.Now(), time.Now().Add(time.Minute))
	reg.Remove("r1")

	second := reg.GetOrCreate("r1")
	second.begin(reg.nextRound(), level, time.Now(), time.Now().Add(time.Minute))

	if second.round == first.round {
		t.Fatalf("expected recreated room to get a new round number, both got %d", first.round)
	}
}
