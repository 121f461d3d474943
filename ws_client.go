package systembridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/golog"
	uuid "github.com/satori/go.uuid"
)

// Client is the WebSocket facade (C7). It orchestrates the codec (C1),
// correlator (C5) and listener (C6) behind typed operation methods, the
// way the teacher's LiveConnection orchestrates RequestType/LiveListener
// over a single gorilla/websocket connection.
type Client struct {
	config Configuration

	dialer *websocket.Dialer
	conn   *websocket.Conn
	connMu sync.Mutex
	writeMu sync.Mutex
	closed  atomic.Bool

	correlator *correlator

	heartbeatStop chan struct{}
	heartbeatDone chan struct{}
}

// NewClient builds a Client ready to Connect. No I/O happens here.
func NewClient(config Configuration) *Client {
	config.applyDefaults()
	return &Client{
		config:     config,
		dialer:     &websocket.Dialer{HandshakeTimeout: 45 * time.Second},
		correlator: newCorrelator(),
	}
}

// Connected reports whether the underlying socket is open.
func (c *Client) Connected() bool {
	return c.conn != nil && !c.closed.Load()
}

// Connect dials ws://host:port/api/websocket and starts the heartbeat
// ping loop, per spec §4.7.
func (c *Client) Connect(ctx context.Context) error {
	url := fmt.Sprintf("ws://%s:%d/api/websocket", c.config.APIHost, c.config.APIPort)
	golog.Infof("systembridge: connecting to %s", url)

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		golog.Warnf("systembridge: failed to connect: %v", err)
		return &ConnectionError{Method: "GET", URL: url, Cause: err}
	}

	c.connMu.Lock()
	c.conn = conn
	c.closed.Store(false)
	c.connMu.Unlock()

	c.heartbeatStop = make(chan struct{})
	c.heartbeatDone = make(chan struct{})
	go c.heartbeatLoop()

	golog.Info("systembridge: connected")
	return nil
}

// heartbeatLoop sends a ping control frame every HeartbeatInterval until
// Close is called, per spec §4.7/§5.
func (c *Client) heartbeatLoop() {
	defer close(c.heartbeatDone)

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.heartbeatStop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				golog.Debugf("systembridge: heartbeat ping failed: %v", err)
				return
			}
		}
	}
}

// Close closes the underlying socket and stops the heartbeat loop.
// Idempotent: a second call is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	golog.Info("systembridge: closing connection")

	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		<-c.heartbeatDone
	}

	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// writeRequest serializes and writes req, serialized by writeMu since
// gorilla/websocket connections are not safe for concurrent writers
// (spec §5's "internal write mutex" fallback).
func (c *Client) writeRequest(req Request) error {
	if !c.Connected() {
		return &ConnectionClosedError{Reason: "write attempted on closed connection"}
	}

	payload, err := EncodeRequest(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &ConnectionClosedError{Reason: err.Error()}
	}
	return nil
}

// newRequestID generates a fresh correlation id for one send. Per the
// design note in spec §9, this must happen inside the call, never as a
// default computed once and reused.
func newRequestID() string {
	return uuid.NewV4().String()
}

// sendMessage is the single chokepoint every operation method funnels
// through: register (if waiting), write, then wait with a bounded
// timeout that synthesizes ERROR/TIMEOUT rather than propagating as an
// error, per spec §4.7 and the resolved open question in spec §9.
func (c *Client) sendMessage(ctx context.Context, event EventType, data any, waitForResponse bool, responseType EventType) (Response, error) {
	req := Request{
		Token: c.config.Token,
		ID:    newRequestID(),
		Event: event,
		Data:  data,
	}

	if !waitForResponse {
		if err := c.writeRequest(req); err != nil {
			return Response{}, err
		}
		golog.Debugf("systembridge: sent fire-and-forget message: %s", req.Event)
		return Response{ID: req.ID, Type: EventNone, Message: "Message sent"}, nil
	}

	pending := c.correlator.register(req.ID, responseType)
	if err := c.writeRequest(req); err != nil {
		c.correlator.remove(req.ID)
		return Response{}, err
	}
	golog.Debugf("systembridge: sent message: %s (id=%s)", req.Event, req.ID)

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-pending.slot:
		c.correlator.remove(req.ID)
		return resp, nil
	case <-timer.C:
		c.correlator.remove(req.ID)
		golog.Infof("systembridge: request %s (id=%s) timed out after %s", req.Event, req.ID, c.config.RequestTimeout)
		return Response{ID: req.ID, Type: EventError, SubType: SubTypeTimeout, Message: "Request timed out"}, nil
	case <-ctx.Done():
		c.correlator.remove(req.ID)
		return Response{}, ctx.Err()
	}
}

// --- Fire-and-forget operations (no correlator entry) ---

// ApplicationUpdate requests the backend update itself to model.Version.
func (c *Client) ApplicationUpdate(ctx context.Context, model Update) (Response, error) {
	return c.sendMessage(ctx, EventApplicationUpdate, model, false, EventNone)
}

// ExitBackend requests the backend exit.
func (c *Client) ExitBackend(ctx context.Context) (Response, error) {
	return c.sendMessage(ctx, EventExitApplication, map[string]any{}, false, EventNone)
}

// MediaControl sends a media transport control command.
func (c *Client) MediaControl(ctx context.Context, model MediaControl) (Response, error) {
	return c.sendMessage(ctx, EventMediaControl, model, false, EventNone)
}

// requestGetData sends GET_DATA without waiting for DATA_GET; used
// internally by the composite GetData operation (C8, get_data.go), which
// drives its own completion condition off the listener's push callback.
func (c *Client) requestGetData(ctx context.Context, model GetData) error {
	_, err := c.sendMessage(ctx, EventGetData, model, false, EventNone)
	return err
}

// --- Request/response operations ---

// GetDirectories returns the backend's configured media directories.
func (c *Client) GetDirectories(ctx context.Context) ([]MediaDirectory, error) {
	resp, err := c.sendMessage(ctx, EventGetDirectories, map[string]any{}, true, EventDirectories)
	if err != nil {
		return nil, err
	}
	if resp.Type == EventError {
		return nil, timeoutOrAuthError(resp)
	}

	decoded, err := decodeModulePayload(lookupDecoder("media_directories"), resp.Data)
	if err != nil {
		return nil, &BadMessageError{Reason: err.Error()}
	}
	return toTypedSlice[MediaDirectory](decoded), nil
}

// GetFiles lists files under model.Path within model.Base.
func (c *Client) GetFiles(ctx context.Context, model MediaGetFiles) (MediaFiles, error) {
	resp, err := c.sendMessage(ctx, EventGetFiles, model, true, EventFiles)
	if err != nil {
		return MediaFiles{}, err
	}
	if resp.Type == EventError {
		return MediaFiles{}, timeoutOrAuthError(resp)
	}

	var files MediaFiles
	if len(resp.Data) > 0 {
		if err := unmarshalInto(resp.Data, &files); err != nil {
			return MediaFiles{}, &BadMessageError{Reason: err.Error()}
		}
	}
	return files, nil
}

// GetFile fetches metadata for one file.
func (c *Client) GetFile(ctx context.Context, model MediaGetFile) (MediaFile, error) {
	resp, err := c.sendMessage(ctx, EventGetFile, model, true, EventFile)
	if err != nil {
		return MediaFile{}, err
	}
	if resp.Type == EventError {
		return MediaFile{}, timeoutOrAuthError(resp)
	}

	decoded, err := decodeModulePayload(lookupDecoder("media_file"), resp.Data)
	if err != nil {
		return MediaFile{}, &BadMessageError{Reason: err.Error()}
	}
	if f, ok := decoded.(MediaFile); ok {
		return f, nil
	}
	return MediaFile{}, nil
}

// RegisterDataListener subscribes the connection to push updates for the
// given modules; it does not itself start the listen loop (see GetData
// in get_data.go, and Listen in listener.go).
func (c *Client) RegisterDataListener(ctx context.Context, model RegisterDataListener) (Response, error) {
	resp, err := c.sendMessage(ctx, EventRegisterDataListener, model, true, EventDataListenerRegistered)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// KeyboardKeypress sends a single key press.
func (c *Client) KeyboardKeypress(ctx context.Context, model KeyboardKey) (Response, error) {
	resp, err := c.sendMessage(ctx, EventKeyboardKeypress, model, true, EventKeyboardKeyPressed)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// KeyboardText types out a string.
func (c *Client) KeyboardText(ctx context.Context, model KeyboardText) (Response, error) {
	resp, err := c.sendMessage(ctx, EventKeyboardText, model, true, EventKeyboardTextSent)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// SendNotification displays a desktop notification.
func (c *Client) SendNotification(ctx context.Context, model Notification) (Response, error) {
	resp, err := c.sendMessage(ctx, EventNotification, model, true, EventNotificationSent)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// OpenPath opens a filesystem path in the OS's default handler.
func (c *Client) OpenPath(ctx context.Context, model OpenPath) (Response, error) {
	resp, err := c.sendMessage(ctx, EventOpen, model, true, EventOpened)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// OpenURL opens a URL in the OS's default browser.
func (c *Client) OpenURL(ctx context.Context, model OpenURL) (Response, error) {
	resp, err := c.sendMessage(ctx, EventOpen, model, true, EventOpened)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// PowerSleep puts the host to sleep.
func (c *Client) PowerSleep(ctx context.Context) (Response, error) {
	return c.powerOp(ctx, EventPowerSleep, EventPowerSleeping)
}

// PowerHibernate hibernates the host.
func (c *Client) PowerHibernate(ctx context.Context) (Response, error) {
	return c.powerOp(ctx, EventPowerHibernate, EventPowerHibernating)
}

// PowerRestart restarts the host.
func (c *Client) PowerRestart(ctx context.Context) (Response, error) {
	return c.powerOp(ctx, EventPowerRestart, EventPowerRestarting)
}

// PowerShutdown shuts down the host.
func (c *Client) PowerShutdown(ctx context.Context) (Response, error) {
	return c.powerOp(ctx, EventPowerShutdown, EventPowerShuttingDown)
}

// PowerLock locks the host's session.
func (c *Client) PowerLock(ctx context.Context) (Response, error) {
	return c.powerOp(ctx, EventPowerLock, EventPowerLocking)
}

// PowerLogout logs the current user out.
func (c *Client) PowerLogout(ctx context.Context) (Response, error) {
	return c.powerOp(ctx, EventPowerLogout, EventPowerLoggingOut)
}

func (c *Client) powerOp(ctx context.Context, event, expected EventType) (Response, error) {
	resp, err := c.sendMessage(ctx, event, map[string]any{}, true, expected)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// timeoutOrAuthError converts a synthetic ERROR/TIMEOUT (or any other
// ERROR-typed) response into a Go error for operations whose return
// shape is a typed value rather than a Response.
func timeoutOrAuthError(resp Response) error {
	if resp.SubType == SubTypeTimeout {
		return &ConnectionError{Status: "timeout"}
	}
	return &BadMessageError{Reason: fmt.Sprintf("server error: %s", resp.Message)}
}

// toTypedSlice converts a []any of decoded values (as produced by
// decodeModulePayload for array payloads) into a []T, dropping any
// element of the wrong dynamic type rather than panicking.
func toTypedSlice[T any](decoded any) []T {
	elements, ok := decoded.([]any)
	if !ok {
		if single, ok := decoded.(T); ok {
			return []T{single}
		}
		return nil
	}
	out := make([]T, 0, len(elements))
	for _, el := range elements {
		if v, ok := el.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func unmarshalInto(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

