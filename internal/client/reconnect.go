package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-sync/internal/events"
)

// State tracks where the controller is in its connection lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Stream is one live event connection to the server.
type Stream interface {
	ReadEvent() (*events.Event, error)
	WriteFrame(events.Frame) error
	Close() error
}

// Dialer opens a new Stream. The controller redials through it after every
// connection loss.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Dialer Dialer
	UserID string

	// OnEvent receives every event read off the stream.
	OnEvent func(*events.Event)

	// Resync is called after each successful (re)connect, once the
	// subscription frames are back on the wire. It pulls authoritative
	// state over REST to fill whatever the stream missed while down.
	Resync func(ctx context.Context) error

	// InitialBackoff and MaxBackoff bound the redial delay. Zero values
	// take the defaults of 2s and 10s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Controller keeps one event stream alive: it dials, subscribes, resyncs,
// and on any failure backs off and does it all again. Retries never give
// up; the stale local view stays readable while disconnected.
type Controller struct {
	cfg ControllerConfig

	mu     sync.Mutex
	state  State
	synced bool
	stream Stream
	rooms  map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewController builds a stopped Controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &Controller{
		cfg:   cfg,
		state: StateDisconnected,
		rooms: make(map[string]struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Synced reports whether the local view is known current. It goes false on
// every connection loss and true again once the post-reconnect resync
// succeeds; a false value means reads serve possibly stale state.
func (c *Controller) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// Start begins the connect loop. It returns immediately; the loop runs
// until Stop or ctx cancellation.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()
	go c.run(ctx)
}

// Stop tears down the stream and halts the loop.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	stream := c.stream
	done := c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Close()
	}
	if done != nil {
		<-done
	}
}

// JoinRoom subscribes to a room. The subscription survives reconnects: it
// is replayed on every fresh stream.
func (c *Controller) JoinRoom(roomID string) error {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	return c.writeFrame(stream, events.ActionJoinChat, events.RoomData{RoomID: roomID})
}

// LeaveRoom drops a room subscription.
func (c *Controller) LeaveRoom(roomID string) error {
	c.mu.Lock()
	delete(c.rooms, roomID)
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	return c.writeFrame(stream, events.ActionLeaveChat, events.RoomData{RoomID: roomID})
}

// SendFrame writes a frame on the live stream, if any. Frames sent while
// disconnected are dropped; mutations should go through REST instead.
func (c *Controller) SendFrame(frame events.Frame) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.WriteFrame(frame)
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateDisconnected, nil)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()

	firstAttempt := true
	for {
		if ctx.Err() != nil {
			return
		}
		if firstAttempt {
			c.setState(StateConnecting, nil)
		} else {
			c.setState(StateReconnecting, nil)
		}

		stream, err := c.cfg.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := policy.NextBackOff()
			log.Printf("dial failed, retrying in %s: %v", wait, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		if err := c.subscribe(stream); err != nil {
			stream.Close()
			wait := policy.NextBackOff()
			log.Printf("subscription failed, retrying in %s: %v", wait, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		policy.Reset()
		firstAttempt = false
		c.setState(StateConnected, stream)

		// Close the stream on cancellation so the read loop unblocks even
		// if Stop raced a redial.
		watcherStop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				stream.Close()
			case <-watcherStop:
			}
		}()

		// Resync runs beside the read loop so a stream that dies while
		// REST is struggling is still noticed and redialed promptly.
		resyncCtx, stopResync := context.WithCancel(ctx)
		go c.resync(resyncCtx)
		c.readLoop(ctx, stream)
		stopResync()
		close(watcherStop)

		c.mu.Lock()
		c.stream = nil
		c.mu.Unlock()
	}
}

// subscribe replays the identity and room subscriptions on a fresh stream.
func (c *Controller) subscribe(stream Stream) error {
	if err := c.writeFrame(stream, events.ActionRegisterUser, events.RegisterUserData{UserID: c.cfg.UserID}); err != nil {
		return err
	}
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	c.mu.Unlock()
	for _, roomID := range rooms {
		if err := c.writeFrame(stream, events.ActionJoinChat, events.RoomData{RoomID: roomID}); err != nil {
			return err
		}
	}
	return nil
}

// resync pulls authoritative state over REST. Failure keeps the stale view
// and retries on a timer while the stream stays up.
func (c *Controller) resync(ctx context.Context) {
	if c.cfg.Resync == nil {
		c.setSynced(true)
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.cfg.Resync(ctx); err == nil {
			c.setSynced(true)
			return
		} else {
			log.Printf("resync failed, retrying: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.InitialBackoff):
		}
		if c.State() != StateConnected {
			return
		}
	}
}

func (c *Controller) readLoop(ctx context.Context, stream Stream) {
	for {
		ev, err := stream.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("stream closed: %v", err)
			}
			stream.Close()
			return
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(ev)
		}
	}
}

func (c *Controller) writeFrame(stream Stream, action events.Action, data any) error {
	frame, err := events.NewFrame(action, data)
	if err != nil {
		return err
	}
	return stream.WriteFrame(frame)
}

func (c *Controller) setState(s State, stream Stream) {
	c.mu.Lock()
	c.state = s
	if s != StateConnected {
		c.synced = false
	}
	if stream != nil || s != StateConnected {
		c.stream = stream
	}
	c.mu.Unlock()
}

func (c *Controller) setSynced(v bool) {
	c.mu.Lock()
	c.synced = v
	c.mu.Unlock()
}
