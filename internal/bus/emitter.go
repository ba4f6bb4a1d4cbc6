package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Kind classifies an upstream envelope.
type Kind string

const (
	KindResponse   Kind = "response"
	KindGuestEvent Kind = "guest_event"
	KindHostEvent  Kind = "host_event"
	KindLog        Kind = "log"
)

// Response types.
const (
	ResponseSuccess = "success"
	ResponseFailure = "failure"
)

// GuestEvent names a guest state notification.
type GuestEvent string

const (
	GuestRunning     GuestEvent = "running"
	GuestBlocked     GuestEvent = "blocked"
	GuestPaused      GuestEvent = "paused"
	GuestShutdown    GuestEvent = "shutdown"
	GuestShutoff     GuestEvent = "shutoff"
	GuestCrashed     GuestEvent = "crashed"
	GuestPMSuspended GuestEvent = "pm_suspended"
	GuestNoState     GuestEvent = "no_state"
	GuestMigrating   GuestEvent = "migrating"
)

// Envelope is the JSON document pushed onto the upstream list.
type Envelope struct {
	Kind      Kind        `json:"kind"`
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Host      string      `json:"host"`
	NodeID    uint64      `json:"node_id"`
	Message   interface{} `json:"message"`
}

// Response is the outcome of one processed command.
type Response struct {
	Action   string      `json:"action"`
	UUID     string      `json:"uuid"`
	Data     interface{} `json:"data,omitempty"`
	Passback interface{} `json:"passback_parameters,omitempty"`
}

// GuestMessage is the body of a guest event.
type GuestMessage struct {
	UUID          string         `json:"uuid"`
	MigratingInfo *MigratingInfo `json:"migrating_info,omitempty"`
}

// MigratingInfo carries migration progress.
type MigratingInfo struct {
	Iteration int32 `json:"iteration"`
}

// HeartbeatMessage is the body of a host heartbeat.
type HeartbeatMessage struct {
	NodeID uint64 `json:"node_id"`
}

// LogMessage is the body of a forwarded log line.
type LogMessage struct {
	Msg string `json:"msg"`
}

// Emitter publishes envelopes onto the upstream list. It is safe for
// concurrent use.
type Emitter struct {
	client *backend.Client
	key    string
	host   string
	nodeID uint64
	now    func() time.Time
}

// NewEmitter creates an Emitter that pushes onto the list at key and stamps
// every envelope with host and nodeID.
func NewEmitter(client *backend.Client, key, host string, nodeID uint64) *Emitter {
	return &Emitter{
		client: client,
		key:    key,
		host:   host,
		nodeID: nodeID,
		now:    time.Now,
	}
}

// Success reports a successful command.
func (e *Emitter) Success(ctx context.Context, r Response) error {
	return e.emit(ctx, KindResponse, ResponseSuccess, r)
}

// Failure reports a failed command.
func (e *Emitter) Failure(ctx context.Context, r Response) error {
	return e.emit(ctx, KindResponse, ResponseFailure, r)
}

// Guest reports a guest state change.
func (e *Emitter) Guest(ctx context.Context, event GuestEvent, msg GuestMessage) error {
	return e.emit(ctx, KindGuestEvent, string(event), msg)
}

// Heartbeat reports that the host is alive.
func (e *Emitter) Heartbeat(ctx context.Context) error {
	return e.emit(ctx, KindHostEvent, "heartbeat", HeartbeatMessage{NodeID: e.nodeID})
}

// Log forwards a log line upstream.
func (e *Emitter) Log(ctx context.Context, level, msg string) error {
	return e.emit(ctx, KindLog, level, LogMessage{Msg: msg})
}

func (e *Emitter) emit(ctx context.Context, kind Kind, typ string, message interface{}) error {
	data, err := json.Marshal(Envelope{
		Kind:      kind,
		Type:      typ,
		Timestamp: e.now().Unix(),
		Host:      e.host,
		NodeID:    e.nodeID,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", kind, err)
	}

	if err := e.client.RPush(ctx, e.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push %s envelope: %w", kind, err)
	}
	return nil
}
