// Package command decodes the JSON messages the agent receives into typed
// jobs (work queue) and instructions (operation channel).
//
// Decoding is two-phase. Parse extracts the fields every message carries
// (action, uuid, passback_parameters) so callers can route, look up the
// guest, and report a failure even when the action-specific payload turns
// out to be invalid. Job and Instruction then decode the remainder into the
// concrete per-action type.
package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Action names a command.
type Action string

// Provisioning jobs, popped from the work queue.
const (
	ActionCreateGuest Action = "create_guest"
	ActionCreateDisk  Action = "create_disk"
	ActionResizeDisk  Action = "resize_disk"
	ActionDeleteDisk  Action = "delete_disk"
)

// Guest operations, received on the operation channel. resize_disk is
// shared with the job set; on the channel it means an online resize.
const (
	ActionReboot        Action = "reboot"
	ActionForceReboot   Action = "force_reboot"
	ActionShutdown      Action = "shutdown"
	ActionForceShutdown Action = "force_shutdown"
	ActionBoot          Action = "boot"
	ActionSuspend       Action = "suspend"
	ActionResume        Action = "resume"
	ActionDeleteGuest   Action = "delete_guest"
	ActionAttachDisk    Action = "attach_disk"
	ActionDetachDisk    Action = "detach_disk"
	ActionMigrate       Action = "migrate"
)

var (
	// ErrMalformed is returned when a message is not a JSON object.
	ErrMalformed = errors.New("malformed message")

	// ErrIncomplete is returned when an operation lacks action or uuid.
	ErrIncomplete = errors.New("message missing action or uuid")

	// ErrUnknownAction is returned when the action is not recognized.
	ErrUnknownAction = errors.New("unknown action")
)

// ValidationError reports a required field that is missing or invalid.
type ValidationError struct {
	Action Action
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	return fmt.Sprintf("%s: field %q %s", e.Action, e.Field, reason)
}

func missing(action Action, field string) error {
	return &ValidationError{Action: action, Field: field}
}

// Meta holds the fields common to every message.
type Meta struct {
	Action   Action      `mapstructure:"action"`
	UUID     string      `mapstructure:"uuid"`
	Passback interface{} `mapstructure:"passback_parameters"`
}

// Envelope is a parsed message whose payload has not been decoded yet.
type Envelope struct {
	Meta
	fields map[string]interface{}
}

// Parse decodes raw into an Envelope.
func Parse(raw []byte) (*Envelope, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	env := &Envelope{fields: fields}
	if err := decode(fields, &env.Meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}

// ParseInstruction decodes raw from the operation channel. guest_uuid is
// accepted as a synonym for uuid and wins when both are present. A message
// without action or uuid yields ErrIncomplete.
func ParseInstruction(raw []byte) (*Envelope, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	if guestUUID, ok := fields["guest_uuid"]; ok {
		fields["uuid"] = guestUUID
	}

	env := &Envelope{fields: fields}
	if err := decode(fields, &env.Meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Action == "" || env.UUID == "" {
		return nil, ErrIncomplete
	}
	return env, nil
}

func decode(input interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func (e *Envelope) decodeInto(out interface{}) error {
	if err := decode(e.fields, out); err != nil {
		return &ValidationError{Action: e.Action, Field: "payload", Reason: err.Error()}
	}
	return nil
}
