package spotdiff

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"
)

var (
	errUnknownType  = errors.New("unknown message type")
	errMissingField = errors.New("missing field")
)

// Inbound is one decoded client event.
type Inbound interface {
	validate() error
}

type inboundHeader struct {
	Type string `json:"type"`
}

// JoinRequest asks to enter a room.
type JoinRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name,omitempty"`
}

func (m JoinRequest) validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("join: %w: roomId", errMissingField)
	}
	return nil
}

// SignalRequest carries an opaque WebRTC payload for another connection.
type SignalRequest struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

func (m SignalRequest) validate() error {
	if m.To == "" {
		return fmt.Errorf("signal: %w: to", errMissingField)
	}
	return nil
}

type ReadyRequest struct {
	RoomID string `json:"roomId"`
}

func (m ReadyRequest) validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("ready: %w: roomId", errMissingField)
	}
	return nil
}

// ClaimRequest accepts the older spotId field as an alias for targetId.
type ClaimRequest struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
	SpotID   string `json:"spotId,omitempty"`
}

func (m ClaimRequest) validate() error {
	if m.RoomID == "" {
		return fmt.Errorf("claim: %w: roomId", errMissingField)
	}
	if m.target() == "" {
		return fmt.Errorf("claim: %w: targetId", errMissingField)
	}
	return nil
}

func (m ClaimRequest) target() string {
	if m.TargetID != "" {
		return m.TargetID
	}
	return m.SpotID
}

// DecodeInbound parses a text frame into its typed variant.
func DecodeInbound(data []byte) (Inbound, error) {
	var header inboundHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}

	var msg Inbound
	var err error

	switch header.Type {
	case "join":
		var m JoinRequest
		err = json.Unmarshal(data, &m)
		msg = m
	case "signal":
		var m SignalRequest
		err = json.Unmarshal(data, &m)
		msg = m
	case "ready":
		var m ReadyRequest
		err = json.Unmarshal(data, &m)
		msg = m
	case "claim":
		var m ClaimRequest
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, header.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := msg.validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// RosterEntry is one member as shown to clients.
type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Roster struct {
	Players []RosterEntry `json:"players"`
}

// Sent on connect so the client knows its own id before joining.
type WelcomeMessage struct {
	Type string `json:"type"` // "welcome"
	You  string `json:"you"`
}

type JoinedMessage struct {
	Type       string             `json:"type"` // "joined"
	RoomID     string             `json:"roomId"`
	You        string             `json:"you"`
	Roster     Roster             `json:"roster"`
	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`
}

type PeerJoinedMessage struct {
	Type   string `json:"type"` // "peer-joined"
	RoomID string `json:"roomId"`
	Peer   string `json:"peer"`
	Roster Roster `json:"roster"`
}

type PeerLeftMessage struct {
	Type   string `json:"type"` // "peer-left"
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	Roster Roster `json:"roster"`
}

// RoomFullMessage is sent only to the rejected connection.
type RoomFullMessage struct {
	Type   string `json:"type"` // "room-full"
	RoomID string `json:"roomId"`
}

type SignalMessage struct {
	Type string          `json:"type"` // "signal"
	From string          `json:"from"`
	Data json.RawMessage `json:"data,omitempty"`
}

type StartMessage struct {
	Type     string   `json:"type"` // "start"
	RoomID   string   `json:"roomId"`
	Level    int      `json:"level"`
	StartsAt int64    `json:"startsAt"` // unix milliseconds
	EndsAt   int64    `json:"endsAt"`   // unix milliseconds
	Image    string   `json:"image"`
	Base     Base     `json:"base"`
	Spots    []Target `json:"spots"`
	Total    int      `json:"total"`
}

type LockMessage struct {
	Type     string         `json:"type"` // "lock"
	RoomID   string         `json:"roomId"`
	TargetID string         `json:"targetId"`
	WinnerID string         `json:"winnerId"`
	LockedAt int64          `json:"lockedAt"`
	Scores   map[string]int `json:"scores"`
}

// RejectMessage is sent only to the connection whose claim lost.
type RejectMessage struct {
	Type     string `json:"type"` // "reject"
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
	Reason   string `json:"reason"`
}

type RoundOverMessage struct {
	Type    string         `json:"type"` // "round-over"
	RoomID  string         `json:"roomId"`
	Scores  map[string]int `json:"scores"`
	Winners []string       `json:"winners"`
	Reason  string         `json:"reason"`
	EndedAt int64          `json:"endedAt"`
}

// signalKind sniffs an opaque signaling payload for logging. Unrecognized
// payloads are still relayed.
func signalKind(data json.RawMessage) string {
	if len(data) == 0 {
		return "empty"
	}

	var wrapped struct {
		SDP       *webrtc.SessionDescription `json:"sdp"`
		Candidate *webrtc.ICECandidateInit   `json:"candidate"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		switch {
		case wrapped.SDP != nil && wrapped.SDP.SDP != "":
			return wrapped.SDP.Type.String()
		case wrapped.Candidate != nil && wrapped.Candidate.Candidate != "":
			return "candidate"
		}
	}

	var sdp webrtc.SessionDescription
	if err := json.Unmarshal(data, &sdp); err == nil && sdp.SDP != "" {
		return sdp.Type.String()
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &candidate); err == nil && candidate.Candidate != "" {
		return "candidate"
	}

	return "opaque"
}
