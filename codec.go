package systembridge

import "encoding/json"

// EventType is the closed set of event identifiers carried on the `event`
// field of a request frame and the `type` field of a response frame.
type EventType string

// Request events, sent by the client.
const (
	EventApplicationUpdate    EventType = "APPLICATION_UPDATE"
	EventExitApplication      EventType = "EXIT_APPLICATION"
	EventGetData              EventType = "GET_DATA"
	EventGetDirectories       EventType = "GET_DIRECTORIES"
	EventGetFiles             EventType = "GET_FILES"
	EventGetFile              EventType = "GET_FILE"
	EventRegisterDataListener EventType = "REGISTER_DATA_LISTENER"
	EventKeyboardKeypress     EventType = "KEYBOARD_KEYPRESS"
	EventKeyboardText         EventType = "KEYBOARD_TEXT"
	EventMediaControl         EventType = "MEDIA_CONTROL"
	EventNotification         EventType = "NOTIFICATION"
	EventOpen                 EventType = "OPEN"
	EventPowerSleep           EventType = "POWER_SLEEP"
	EventPowerHibernate       EventType = "POWER_HIBERNATE"
	EventPowerRestart         EventType = "POWER_RESTART"
	EventPowerShutdown        EventType = "POWER_SHUTDOWN"
	EventPowerLock            EventType = "POWER_LOCK"
	EventPowerLogout          EventType = "POWER_LOGOUT"
)

// Response events, sent by the server.
const (
	EventDataGet                EventType = "DATA_GET"
	EventDataListenerRegistered EventType = "DATA_LISTENER_REGISTERED"
	EventDataUpdate             EventType = "DATA_UPDATE"
	EventDirectories            EventType = "DIRECTORIES"
	EventFile                   EventType = "FILE"
	EventFiles                  EventType = "FILES"
	EventKeyboardKeyPressed     EventType = "KEYBOARD_KEY_PRESSED"
	EventKeyboardTextSent       EventType = "KEYBOARD_TEXT_SENT"
	EventNotificationSent       EventType = "NOTIFICATION_SENT"
	EventOpened                 EventType = "OPENED"
	EventPowerSleeping          EventType = "POWER_SLEEPING"
	EventPowerHibernating       EventType = "POWER_HIBERNATING"
	EventPowerRestarting        EventType = "POWER_RESTARTING"
	EventPowerShuttingDown      EventType = "POWER_SHUTTINGDOWN"
	EventPowerLocking           EventType = "POWER_LOCKING"
	EventPowerLoggingOut        EventType = "POWER_LOGGINGOUT"
	EventError                  EventType = "ERROR"
	EventSettingsUpdated        EventType = "SETTINGS_UPDATED"
	EventSettingsResult         EventType = "SETTINGS_RESULT"

	// EventNone is synthesized locally for fire-and-forget sends; it never
	// appears on the wire.
	EventNone EventType = "N/A"
)

// EventSubType is the secondary discriminator carried on ERROR frames.
type EventSubType string

const (
	SubTypeBadToken                  EventSubType = "BAD_TOKEN"
	subTypeBadAPIKeyLegacy           EventSubType = "BAD_API_KEY" // legacy alias of SubTypeBadToken, read-only
	SubTypeListenerAlreadyRegistered EventSubType = "LISTENER_ALREADY_REGISTERED"
	SubTypeUnknownEvent              EventSubType = "UNKNOWN_EVENT"
	SubTypeBadDirectory              EventSubType = "BAD_DIRECTORY"
	SubTypeBadFile                   EventSubType = "BAD_FILE"
	SubTypeBadJSON                   EventSubType = "BAD_JSON"
	SubTypeBadPath                   EventSubType = "BAD_PATH"
	SubTypeBadRequest                EventSubType = "BAD_REQUEST"
	SubTypeInvalidAction             EventSubType = "INVALID_ACTION"
	SubTypeMissingAction             EventSubType = "MISSING_ACTION"
	SubTypeMissingToken              EventSubType = "MISSING_TOKEN"
	SubTypeMissingPath               EventSubType = "MISSING_PATH"
	SubTypeMissingValue              EventSubType = "MISSING_VALUE"

	// SubTypeTimeout is synthesized locally when a request's wait deadline
	// expires; it never appears on the wire.
	SubTypeTimeout EventSubType = "TIMEOUT"
)

// isBadToken reports whether subtype is the authentication-failure
// discriminator, accepting the legacy BAD_API_KEY spelling on read.
func isBadToken(subtype EventSubType) bool {
	return subtype == SubTypeBadToken || subtype == subTypeBadAPIKeyLegacy
}

// Request is the frame shape sent from client to server.
type Request struct {
	Token string      `json:"token"`
	ID    string      `json:"id"`
	Event EventType   `json:"event"`
	Data  interface{} `json:"data"`
}

// Response is the frame shape received from the server, either solicited
// (echoing a request id) or an unsolicited push.
type Response struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	SubType EventSubType    `json:"subtype,omitempty"`
	Module  string          `json:"module,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	// Decoded holds the typed payload of a correlated DATA_UPDATE response
	// once the registry (C2) has mapped Data per its Module; it stays nil
	// for every other response. Callers that only need the raw wire data
	// can ignore this field.
	Decoded any `json:"-"`
}

// EncodeRequest serializes a request to the wire's UTF-8 JSON form.
func EncodeRequest(r Request) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResponse parses a single inbound frame into a Response. It does
// not populate Decoded; callers route through the registry for that.
func DecodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, &BadMessageError{Reason: err.Error()}
	}
	return resp, nil
}
