package chat

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	domain "github.com/example/room-relay/domain/chat"
	"github.com/example/room-relay/events"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
	"golang.org/x/time/rate"
)

const (
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLength = 9
	commandBuffer  = 256
)

// Broadcaster delivers encoded frames to connection outboxes. Send must not
// block; frames for unknown or congested connections are dropped.
type Broadcaster interface {
	Send(connIDs []string, frame []byte)
}

// EventPublisher publishes domain events emitted by the relay.
type EventPublisher interface {
	Publish(event any)
}

// Config configures a Relay.
type Config struct {
	MaxHistory  int
	JoinHistory int
	// RatePerSecond and RateBurst limit post-message per connection.
	// Limiting is opt-in: a zero burst disables it.
	RatePerSecond float64
	RateBurst     int
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		MaxHistory:    DefaultMaxHistory,
		JoinHistory:   DefaultJoinHistory,
		RatePerSecond: 10,
	}
}

// Connection is the relay's view of one client session.
type Connection struct {
	ID          string
	Username    string
	RoomID      string
	ConnectedAt time.Time

	limiter *rate.Limiter
}

func (c *Connection) hasIdentity() bool { return c.Username != "" }

type command struct {
	fn   func()
	done chan struct{}
}

// Relay owns all room and connection state. Every operation runs as one
// command on the worker goroutine started by Run, so per-room history
// order matches broadcast order.
type Relay struct {
	cfg    Config
	store  *RoomStore
	conns  map[string]*Connection
	out    Broadcaster
	events EventPublisher
	logger types.Logger

	cmds    chan command
	done    chan struct{}
	started atomic.Bool
	live    atomic.Int64

	now    func() time.Time
	suffix func() string
}

// NewRelay creates a relay. Run must be called before any operation.
func NewRelay(cfg Config, out Broadcaster, pub EventPublisher, logger types.Logger) (*Relay, error) {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.JoinHistory <= 0 {
		cfg.JoinHistory = DefaultJoinHistory
	}
	if cfg.JoinHistory > cfg.MaxHistory {
		cfg.JoinHistory = cfg.MaxHistory
	}

	suffix, err := nanoid.CustomASCII(idAlphabet, idSuffixLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}

	return &Relay{
		cfg:    cfg,
		store:  NewRoomStore(cfg.MaxHistory),
		conns:  make(map[string]*Connection),
		out:    out,
		events: pub,
		logger: logger,
		cmds:   make(chan command, commandBuffer),
		done:   make(chan struct{}),
		now:    time.Now,
		suffix: suffix,
	}, nil
}

// Run executes commands until ctx is cancelled. It must be called once.
func (r *Relay) Run(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.cmds:
			r.execute(cmd)
		}
	}
}

// Done is closed once the worker has stopped.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

func (r *Relay) execute(cmd command) {
	defer close(cmd.done)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Relay command panicked", "panic", rec)
		}
	}()
	cmd.fn()
}

// exec runs fn on the worker and waits for it to finish. A panic in fn is
// recovered by the worker; callers that return a result preset their error
// to ErrInternal so a command that did not finish is reported as failed.
func (r *Relay) exec(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}

	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrRelayClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-r.done:
		select {
		case <-cmd.done:
			return nil
		default:
			return ErrRelayClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionCount returns the number of live connections.
func (r *Relay) ConnectionCount() int {
	return int(r.live.Load())
}

// Connect registers a new connection and greets it with its id.
func (r *Relay) Connect(ctx context.Context, connID string) error {
	return r.exec(ctx, func() {
		if _, exists := r.conns[connID]; exists {
			return
		}
		conn := &Connection{ID: connID, ConnectedAt: r.now()}
		if r.cfg.RateBurst > 0 {
			conn.limiter = rate.NewLimiter(rate.Limit(r.cfg.RatePerSecond), r.cfg.RateBurst)
		}
		r.conns[connID] = conn
		r.live.Add(1)

		r.emit([]string{connID}, EventConnected, ConnectedNotice{UserID: connID})
		r.logger.Info("User connected", "connID", connID)
	})
}

// SetIdentity sets the display name of a connection.
func (r *Relay) SetIdentity(ctx context.Context, connID, username string) (string, error) {
	var userID string
	var opErr error
	if err := r.exec(ctx, func() {
		opErr = ErrInternal
		userID, opErr = r.setIdentity(connID, &username)
	}); err != nil {
		return "", err
	}
	return userID, opErr
}

// Join moves a connection into a room, creating the room if needed.
func (r *Relay) Join(ctx context.Context, connID, roomID string) (JoinResult, error) {
	var result JoinResult
	var opErr error
	if err := r.exec(ctx, func() {
		opErr = ErrInternal
		result, opErr = r.join(connID, &roomID, nil)
	}); err != nil {
		return JoinResult{}, err
	}
	return result, opErr
}

// Post appends a message to the connection's room and broadcasts it.
func (r *Relay) Post(ctx context.Context, connID, text string) (domain.Message, error) {
	var msg domain.Message
	var opErr error
	if err := r.exec(ctx, func() {
		opErr = ErrInternal
		msg, opErr = r.post(connID, &text)
	}); err != nil {
		return domain.Message{}, err
	}
	return msg, opErr
}

// Typing relays a typing indicator to the other members of the room.
func (r *Relay) Typing(ctx context.Context, connID string, isTyping bool) error {
	return r.exec(ctx, func() {
		r.typing(connID, isTyping)
	})
}

// Disconnect removes a connection and notifies its room.
func (r *Relay) Disconnect(ctx context.Context, connID, reason string) error {
	return r.exec(ctx, func() {
		r.disconnect(connID, reason)
	})
}

// ListRooms returns a summary of every room.
func (r *Relay) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	var rooms []domain.RoomSummary
	if err := r.exec(ctx, func() {
		rooms = r.store.ListRooms()
	}); err != nil {
		return nil, err
	}
	return rooms, nil
}

// RoomInfo returns the summary of one room.
func (r *Relay) RoomInfo(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	var summary domain.RoomSummary
	var found bool
	if err := r.exec(ctx, func() {
		summary, found = r.store.GetRoom(roomID)
	}); err != nil {
		return domain.RoomSummary{}, err
	}
	if !found {
		return domain.RoomSummary{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return summary, nil
}

// History returns up to limit recent messages of a room, oldest first.
func (r *Relay) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = r.cfg.JoinHistory
	}
	if limit > r.cfg.MaxHistory {
		limit = r.cfg.MaxHistory
	}

	var messages []domain.Message
	var found bool
	if err := r.exec(ctx, func() {
		_, found = r.store.GetRoom(roomID)
		messages = r.store.GetHistory(roomID, limit)
	}); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return messages, nil
}

// Presence returns the current members of a room in join order.
func (r *Relay) Presence(ctx context.Context, roomID string) ([]domain.Member, error) {
	var members []domain.Member
	var found bool
	if err := r.exec(ctx, func() {
		_, found = r.store.GetRoom(roomID)
		members = r.presence(roomID)
	}); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return members, nil
}

// The methods below run on the worker goroutine only.

func (r *Relay) setIdentity(connID string, raw *string) (string, error) {
	conn, ok := r.conns[connID]
	if !ok {
		return "", ErrUnknownConnection
	}
	if raw == nil {
		return "", ErrInvalidIdentity
	}

	name, err := SanitizeUsername(*raw)
	if err != nil {
		return "", err
	}

	conn.Username = name
	r.logger.Info("User set identity", "connID", connID, "username", name)
	return conn.ID, nil
}

// join performs a room join. reply, when set, is invoked after membership
// changed and before the presence broadcast to the new room.
func (r *Relay) join(connID string, raw *string, reply func(JoinResult)) (JoinResult, error) {
	conn, ok := r.conns[connID]
	if !ok {
		return JoinResult{}, ErrUnknownConnection
	}
	if !conn.hasIdentity() {
		return JoinResult{}, ErrIdentityRequired
	}
	if raw == nil {
		return JoinResult{}, ErrInvalidRoom
	}
	roomID, err := NormalizeRoomID(*raw)
	if err != nil {
		return JoinResult{}, err
	}

	now := r.now()

	if conn.RoomID != "" && conn.RoomID != roomID {
		r.leave(conn, events.LeaveReasonSwitch, now)
	}

	room, created := r.store.GetOrCreate(roomID, now)
	if created {
		r.logger.Info("Room created", "roomID", roomID, "createdBy", conn.Username)
		r.publish(events.RoomCreatedEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			CreatedBy: conn.Username,
			Timestamp: now,
		})
	}

	r.store.AddMember(roomID, connID)
	conn.RoomID = roomID

	r.emit(r.others(roomID, connID), EventUserJoined, PresenceNotice{
		Username:  conn.Username,
		Room:      roomID,
		Timestamp: now,
	})

	result := JoinResult{
		ID:       roomID,
		Messages: r.store.GetHistory(roomID, r.cfg.JoinHistory),
		Users:    r.presence(roomID),
	}
	if reply != nil {
		reply(result)
	}

	r.emit(r.store.Members(roomID), EventRoomUsersUpdated, result.Users)

	r.publish(events.UserJoinedEvent{
		RoomID:    roomID,
		UserID:    connID,
		Username:  conn.Username,
		Timestamp: now,
	})
	r.logger.Info("User joined room", "connID", connID, "username", conn.Username, "roomID", roomID)
	return result, nil
}

func (r *Relay) post(connID string, raw *string) (domain.Message, error) {
	conn, ok := r.conns[connID]
	if !ok {
		return domain.Message{}, ErrUnknownConnection
	}
	if !conn.hasIdentity() || conn.RoomID == "" {
		return domain.Message{}, ErrNotReady
	}

	if raw == nil {
		return domain.Message{}, ErrInvalidMessage
	}
	text := SanitizeMessage(*raw)
	if text == "" {
		return domain.Message{}, ErrInvalidMessage
	}

	// Only acceptable messages spend a token.
	now := r.now()
	if conn.limiter != nil && !conn.limiter.AllowN(now, 1) {
		r.logger.Warn("Rate limit exceeded", "connID", connID)
		return domain.Message{}, ErrRateLimited
	}

	msg := domain.Message{
		ID:        r.newMessageID(now),
		Text:      text,
		Username:  conn.Username,
		UserID:    conn.ID,
		RoomID:    conn.RoomID,
		Timestamp: now,
	}
	if !r.store.AddMessage(msg) {
		return domain.Message{}, fmt.Errorf("%w: room %s missing", ErrInternal, conn.RoomID)
	}

	r.emit(r.store.Members(msg.RoomID), EventNewMessage, msg)

	r.publish(events.MessagePostedEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Length:    len([]rune(msg.Text)),
		Timestamp: now,
	})
	r.logger.Debug("Message posted", "connID", connID, "roomID", msg.RoomID, "messageID", msg.ID)
	return msg, nil
}

func (r *Relay) typing(connID string, isTyping bool) {
	conn, ok := r.conns[connID]
	if !ok || !conn.hasIdentity() || conn.RoomID == "" {
		return
	}
	r.emit(r.others(conn.RoomID, connID), EventUserTyping, TypingNotice{
		Username: conn.Username,
		IsTyping: isTyping,
	})
}

func (r *Relay) disconnect(connID, reason string) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	if conn.RoomID != "" {
		r.leave(conn, events.LeaveReasonDisconnect, r.now())
	}
	delete(r.conns, connID)
	r.live.Add(-1)

	r.logger.Info("User disconnected", "connID", connID, "username", conn.Username, "reason", reason)
}

// leave removes conn from its current room and notifies the remaining members.
func (r *Relay) leave(conn *Connection, reason string, now time.Time) {
	roomID := conn.RoomID
	r.store.RemoveMember(roomID, conn.ID)
	conn.RoomID = ""

	remaining := r.store.Members(roomID)
	r.emit(remaining, EventUserLeft, PresenceNotice{
		Username:  conn.Username,
		Room:      roomID,
		Timestamp: now,
	})
	r.emit(remaining, EventRoomUsersUpdated, r.presence(roomID))

	r.publish(events.UserLeftEvent{
		RoomID:    roomID,
		UserID:    conn.ID,
		Username:  conn.Username,
		Reason:    reason,
		Timestamp: now,
	})
	r.logger.Info("User left room", "connID", conn.ID, "roomID", roomID, "reason", reason)
}

func (r *Relay) presence(roomID string) []domain.Member {
	ids := r.store.Members(roomID)
	members := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		if conn, ok := r.conns[id]; ok {
			members = append(members, domain.Member{ID: conn.ID, Username: conn.Username})
		}
	}
	return members
}

func (r *Relay) others(roomID, exclude string) []string {
	ids := r.store.Members(roomID)
	result := ids[:0]
	for _, id := range ids {
		if id != exclude {
			result = append(result, id)
		}
	}
	return result
}

func (r *Relay) newMessageID(now time.Time) string {
	return "msg_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + r.suffix()
}

func (r *Relay) emit(connIDs []string, event string, data any) {
	r.reply(connIDs, event, nil, data)
}

func (r *Relay) reply(connIDs []string, event string, ack *uint64, data any) {
	if len(connIDs) == 0 {
		return
	}
	frame, err := Encode(event, ack, data)
	if err != nil {
		r.logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	r.out.Send(connIDs, frame)
}

func (r *Relay) publish(event any) {
	if r.events != nil {
		r.events.Publish(event)
	}
}
