// ABOUTME: Deck control protocol message type definitions
// ABOUTME: Defines the JSON envelope and the payloads of every command, query and reply
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version exchanged in the handshake
const Version = 1

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeServerError = "server/error"

	TypePlay        = "deck/play"
	TypePause       = "deck/pause"
	TypeStop        = "deck/stop"
	TypeCue         = "deck/cue"
	TypeEject       = "deck/eject"
	TypeLoad        = "deck/load"
	TypeQuit        = "deck/quit"
	TypeSetCuepoint = "deck/set_cuepoint"
	TypeAck         = "deck/ack"

	TypeGetState    = "deck/get_state"
	TypeState       = "deck/state"
	TypeGetPosition = "deck/get_position"
	TypePosition    = "deck/position"
	TypeGetDuration = "deck/get_duration"
	TypeDuration    = "deck/duration"
	TypeGetFilepath = "deck/get_filepath"
	TypeFilepath    = "deck/filepath"
	TypeGetStatus   = "deck/get_status"
	TypeStatus      = "deck/status"

	TypeGetError   = "get_error"
	TypeError      = "error"
	TypeGetVersion = "get_version"
	TypeVersion    = "version"
	TypePing       = "ping"
	TypePong       = "pong"
)

// Message is the top-level wrapper for all protocol messages. Replies
// carry the ID of the request they answer; pushed messages have none.
type Message struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// DecodePayload converts a generically decoded payload into v.
func DecodePayload(payload interface{}, v interface{}) error {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	Token      string      `json:"token,omitempty"` // JWT, required when the deck has a secret
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the deck's response to client/hello
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// ServerError is sent before the deck closes a connection it refuses
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Cue is the deck/cue payload. A nil cue point re-cues to the stored one.
type Cue struct {
	Cuepoint *float64 `json:"cuepoint,omitempty"`
}

// SetCuepoint is the deck/set_cuepoint payload
type SetCuepoint struct {
	Cuepoint float64 `json:"cuepoint"`
}

// Load is the deck/load payload
type Load struct {
	Path string `json:"path"`
}

// Ack answers every command
type Ack struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	State   string `json:"state"`
}

// StateReply answers deck/get_state
type StateReply struct {
	State string `json:"state"`
}

// PositionReply answers deck/get_position
type PositionReply struct {
	Position float64 `json:"position"`
}

// DurationReply answers deck/get_duration
type DurationReply struct {
	Duration float64 `json:"duration"`
}

// FilepathReply answers deck/get_filepath
type FilepathReply struct {
	Filepath string `json:"filepath"`
}

// ErrorReply answers get_error and reports protocol errors
type ErrorReply struct {
	Error string `json:"error"`
}

// VersionReply answers get_version
type VersionReply struct {
	Product string `json:"product"`
	Version string `json:"version"`
}

// Status is the full deck snapshot, pushed on every state change
type Status struct {
	State      string  `json:"state"`
	Position   float64 `json:"position"`
	Duration   float64 `json:"duration"`
	Cuepoint   float64 `json:"cuepoint"`
	Filepath   string  `json:"filepath"`
	Filename   string  `json:"filename"`
	Error      string  `json:"error,omitempty"`
	SampleRate int     `json:"sample_rate"`
	Bitrate    int     `json:"bitrate"`
	VBR        bool    `json:"vbr"`
	Buffered   float64 `json:"buffered"`
	Framed     bool    `json:"framed"`
	TrackRate  int     `json:"track_rate"`
	FrameSize  float64 `json:"frame_size"`
	Decoding   bool    `json:"decoding"`
	TaskAlive  bool    `json:"task_alive"`
	Frames     uint64  `json:"frames"`
	LostSync   uint64  `json:"lost_sync"`
	BadCRC     uint64  `json:"bad_crc"`
}
