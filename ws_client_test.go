package systembridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmo001/systembridge-go/testserver"
)

func TestClientSendNotificationHappyPath(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()

	srv.SetScript("NOTIFICATION", testserver.Script{
		Response: map[string]any{"type": "NOTIFICATION_SENT", "message": "ok"},
	})

	client := NewClient(newTestConfig(t, srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	go client.Listen(nil, false)

	resp, err := client.SendNotification(context.Background(), Notification{Title: "hello"})
	require.NoError(t, err)
	assert.Equal(t, EventNotificationSent, resp.Type)
}

func TestClientGetDirectories(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()

	srv.SetScript("GET_DIRECTORIES", testserver.Script{
		Response: map[string]any{
			"type":   "DIRECTORIES",
			"module": "media_directories",
			"data": []map[string]any{
				{"key": "music", "name": "Music", "path": "/m"},
				{"key": "video", "name": "Video", "path": "/v"},
			},
		},
	})

	client := NewClient(newTestConfig(t, srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	go client.Listen(nil, false)

	dirs, err := client.GetDirectories(context.Background())
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "music", dirs[0].Key)
	assert.Equal(t, "video", dirs[1].Key)
}

func TestClientGetDataCompositeSuccess(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()

	srv.SetScript("GET_DATA", testserver.Script{
		Pushes: []map[string]any{
			{"type": "DATA_UPDATE", "module": "system", "data": map[string]any{"version": "4.0.2"}},
			{"type": "DATA_UPDATE", "module": "battery", "data": map[string]any{"percentage": 87}},
		},
	})

	config := newTestConfig(t, srv)
	client := NewClient(config)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	result, err := client.GetData(context.Background(), []string{"system", "battery"}, 2*time.Second)
	require.NoError(t, err)

	system, ok := result["system"].(System)
	require.True(t, ok)
	assert.Equal(t, "4.0.2", system.Version)

	battery, ok := result["battery"].(TelemetryPayload)
	require.True(t, ok)
	assert.EqualValues(t, 87, battery["percentage"])
}

func TestClientGetDataTimesOutWithDataMissingError(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()
	// No script registered for GET_DATA: the server never pushes anything
	// back, so every requested module stays missing until the deadline.

	client := NewClient(newTestConfig(t, srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	_, err := client.GetData(context.Background(), []string{"system"}, 300*time.Millisecond)
	require.Error(t, err)

	var missing *DataMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"system"}, missing.Missing)
}

func TestClientListenReturnsAuthenticationErrorOnBadToken(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()

	config := newTestConfig(t, srv)
	config.Token = "wrong-token"
	client := NewClient(config)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.NoError(t, client.writeRequest(Request{
		Token: config.Token,
		ID:    "req-1",
		Event: EventPowerLock,
		Data:  map[string]any{},
	}))

	err := client.Listen(nil, false)
	require.Error(t, err)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestClientKeyboardTextSent(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()

	srv.SetScript("KEYBOARD_TEXT", testserver.Script{
		Response: map[string]any{"type": "KEYBOARD_TEXT_SENT"},
	})

	client := NewClient(newTestConfig(t, srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	go client.Listen(nil, false)

	resp, err := client.KeyboardText(context.Background(), KeyboardText{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, EventKeyboardTextSent, resp.Type)
}
