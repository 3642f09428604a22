// Package spotdiff runs the two-player spot-the-difference game.
//
// Two players join a room by id and see the same pair of panels. Once both
// have signalled ready, the round starts after a short lead time and runs for
// a fixed duration. The first player to claim a difference scores it and
// locks it for the other. The round ends when time runs out, when every
// difference has been claimed, or when a player leaves.
//
// Implementation details:
//   - One hub goroutine owns every room; claims are therefore ordered and a
//     difference is never scored twice.
//   - Differences listed once per panel share an id and count once.
//   - WebRTC offers, answers and candidates are passed through to the named
//     peer untouched so the players can open a direct channel.
package spotdiff
