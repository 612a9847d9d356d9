package chat

import (
	"context"
	"encoding/json"
)

// Dispatch handles one inbound frame from a connection. Acknowledgments
// and broadcasts are queued on the worker before Dispatch returns. The
// returned error is non-nil only when the relay could not run the command.
func (r *Relay) Dispatch(ctx context.Context, connID string, in Inbound) error {
	switch in.Event {
	case EventSetIdentity:
		username := decodeField(in.Data, func(p *SetIdentityPayload) *string { return p.Username })
		return r.exec(ctx, r.guarded(connID, in.Ack, func() {
			userID, err := r.setIdentity(connID, username)
			if err != nil {
				r.fail(connID, in.Ack, err)
				return
			}
			r.ack(connID, in.Ack, Ack{Success: true, UserID: userID})
		}))

	case EventJoinRoom:
		roomID := decodeString(in.Data)
		return r.exec(ctx, r.guarded(connID, in.Ack, func() {
			_, err := r.join(connID, roomID, func(result JoinResult) {
				r.ack(connID, in.Ack, Ack{Success: true, Room: &result})
			})
			if err != nil {
				r.fail(connID, in.Ack, err)
			}
		}))

	case EventPostMessage:
		text := decodeField(in.Data, func(p *PostMessagePayload) *string { return p.Text })
		return r.exec(ctx, r.guarded(connID, in.Ack, func() {
			msg, err := r.post(connID, text)
			if err != nil {
				r.fail(connID, in.Ack, err)
				return
			}
			r.ack(connID, in.Ack, Ack{Success: true, MessageID: msg.ID})
		}))

	case EventTypingStart, EventTypingStop:
		isTyping := in.Event == EventTypingStart
		return r.exec(ctx, func() {
			r.typing(connID, isTyping)
		})

	default:
		return r.exec(ctx, func() {
			r.emit([]string{connID}, EventError, ErrorNotice{Error: "Unknown event: " + in.Event})
		})
	}
}

// guarded wraps an acknowledged command so that a panic still answers the
// client with a failure ack.
func (r *Relay) guarded(connID string, id *uint64, fn func()) func() {
	return func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Relay command panicked", "connID", connID, "panic", rec)
				r.fail(connID, id, ErrInternal)
			}
		}()
		fn()
	}
}

func (r *Relay) ack(connID string, id *uint64, payload Ack) {
	if id == nil {
		return
	}
	r.reply([]string{connID}, EventAck, id, payload)
}

func (r *Relay) fail(connID string, id *uint64, err error) {
	r.logger.Debug("Operation rejected", "connID", connID, "error", err)
	r.ack(connID, id, Ack{Success: false, Error: AckError(err)})
}

// decodeString decodes a JSON string payload. It returns nil when the
// payload is missing or is not a string.
func decodeString(data json.RawMessage) *string {
	var s string
	if len(data) == 0 || json.Unmarshal(data, &s) != nil {
		return nil
	}
	return &s
}

// decodeField decodes an object payload and extracts one string field.
func decodeField[T any](data json.RawMessage, field func(*T) *string) *string {
	var payload T
	if len(data) == 0 || json.Unmarshal(data, &payload) != nil {
		return nil
	}
	return field(&payload)
}
