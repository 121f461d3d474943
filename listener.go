package systembridge

import (
	"github.com/gorilla/websocket"
	"github.com/kataras/golog"
)

// PushCallback is invoked by Listen for every unsolicited DATA_UPDATE
// frame (or, with acceptOtherTypes, any other unmatched frame): the
// module name (or event type, in the acceptOtherTypes case) and its
// decoded payload, per spec §3's push-callback contract.
type PushCallback func(module string, payload any)

// Listen reads frames from the connection until an error ends the loop,
// dispatching each to the correlator, the push callback, or the
// authentication short-circuit, per spec §4.6. It takes no context and
// always returns the non-nil error that ended the loop: one of
// AuthenticationError, BadMessageError or ConnectionClosedError/
// ConnectionError.
//
// Listen owns the socket's read side exclusively; callers must not run a
// second Listen (or GetData, which runs its own listener loop)
// concurrently with it.
func (c *Client) Listen(callback PushCallback, acceptOtherTypes bool) error {
	for {
		raw, err := c.receiveFrame()
		if err != nil {
			return err
		}

		if err := c.dispatch(raw, callback, acceptOtherTypes); err != nil {
			return err
		}
	}
}

// receiveFrame reads exactly one text frame, translating transport and
// control conditions into the taxonomy of spec §4.6 step 1.
func (c *Client) receiveFrame() ([]byte, error) {
	if !c.Connected() {
		return nil, &ConnectionClosedError{Reason: "connection is closed"}
	}

	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived,
		) {
			return nil, &ConnectionClosedError{Reason: "connection closed by server"}
		}
		if _, ok := err.(*websocket.CloseError); ok {
			return nil, &ConnectionClosedError{Reason: err.Error()}
		}
		return nil, &ConnectionError{Cause: err}
	}

	if msgType == websocket.BinaryMessage {
		return nil, &BadMessageError{Reason: "unexpected binary frame"}
	}

	return data, nil
}

// dispatch classifies and routes a single decoded frame per spec §4.6
// steps 2-6.
func (c *Client) dispatch(raw []byte, callback PushCallback, acceptOtherTypes bool) error {
	resp, err := DecodeResponse(raw)
	if err != nil {
		return err
	}

	// Step 2: authentication short-circuit takes precedence over
	// everything else, even a frame that also matches a correlator entry.
	if resp.Type == EventError && isBadToken(resp.SubType) {
		return &AuthenticationError{Message: resp.Message}
	}

	// Step 3: correlation match.
	if resp.ID != "" {
		if pending, ok := c.correlator.lookup(resp.ID); ok {
			if pending.matches(resp.Type) {
				c.decodeIntoResponse(&resp)
				pending.fulfill(resp)
				return nil
			}
			golog.Infof("systembridge: response type %q does not match requested type %q for id %s", resp.Type, pending.expected, resp.ID)
		}
	}

	// Step 4: error frames not matching (2) or (3).
	if resp.Type == EventError {
		switch resp.SubType {
		case SubTypeListenerAlreadyRegistered:
			golog.Debugf("systembridge: listener already registered: %s", resp.Message)
		default:
			golog.Warnf("systembridge: error frame: type=%s subtype=%s message=%s", resp.Type, resp.SubType, resp.Message)
		}
		return nil
	}

	// Step 5: unsolicited DATA_UPDATE.
	if resp.Type == EventDataUpdate {
		if len(resp.Data) == 0 {
			return nil
		}
		decoder := lookupDecoder(resp.Module)
		if decoder == nil {
			golog.Warnf("systembridge: unknown module: %s", resp.Module)
			return nil
		}
		decoded, err := decodeModulePayload(decoder, resp.Data)
		if err != nil {
			golog.Warnf("systembridge: failed to decode module %s: %v", resp.Module, err)
			return nil
		}
		if callback != nil {
			callback(resp.Module, decoded)
		}
		return nil
	}

	// Step 6: everything else.
	golog.Debugf("systembridge: other message: %s", resp.Type)
	if acceptOtherTypes && callback != nil {
		decoder := lookupDecoder("response")
		decoded, err := decodeModulePayload(decoder, raw)
		if err == nil {
			callback(string(resp.Type), decoded)
		}
	}
	return nil
}

// decodeIntoResponse fills resp.Decoded for a matched DATA_UPDATE
// response, per spec §4.6 step 3.
func (c *Client) decodeIntoResponse(resp *Response) {
	if resp.Type != EventDataUpdate || resp.Module == "" || len(resp.Data) == 0 {
		return
	}
	decoder := lookupDecoder(resp.Module)
	if decoder == nil {
		return
	}
	decoded, err := decodeModulePayload(decoder, resp.Data)
	if err != nil {
		golog.Warnf("systembridge: failed to decode correlated module %s: %v", resp.Module, err)
		return
	}
	resp.Decoded = decoded
}
