package systembridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDecoderUnknownModule(t *testing.T) {
	assert.Nil(t, lookupDecoder("not_a_real_module"))
}

func TestDecodeModulePayloadObjectShape(t *testing.T) {
	decoder := lookupDecoder("media_directories")
	require.NotNil(t, decoder)

	raw := json.RawMessage(`{"key":"music","name":"Music","path":"/home/user/Music"}`)
	decoded, err := decodeModulePayload(decoder, raw)
	require.NoError(t, err)

	dir, ok := decoded.(MediaDirectory)
	require.True(t, ok)
	assert.Equal(t, "music", dir.Key)
	assert.Equal(t, "/home/user/Music", dir.Path)
}

func TestDecodeModulePayloadArrayShape(t *testing.T) {
	decoder := lookupDecoder("media_directories")

	raw := json.RawMessage(`[{"key":"music","name":"Music","path":"/m"},{"key":"video","name":"Video","path":"/v"}]`)
	decoded, err := decodeModulePayload(decoder, raw)
	require.NoError(t, err)

	dirs, ok := decoded.([]any)
	require.True(t, ok)
	require.Len(t, dirs, 2)
	assert.Equal(t, "music", dirs[0].(MediaDirectory).Key)
	assert.Equal(t, "video", dirs[1].(MediaDirectory).Key)
}

func TestDecodeModulePayloadEmptyOrNull(t *testing.T) {
	decoder := lookupDecoder("system")

	decoded, err := decodeModulePayload(decoder, nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	decoded, err = decodeModulePayload(decoder, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeMediaFileToleratesSnakeAndCamelCase(t *testing.T) {
	decoder := lookupDecoder("media_file")

	snake := json.RawMessage(`{"name":"a.mp3","path":"/m/a.mp3","size":10,"is_directory":false,"mod_time":1.5,"permissions":"rw"}`)
	decoded, err := decodeModulePayload(decoder, snake)
	require.NoError(t, err)
	f := decoded.(MediaFile)
	assert.False(t, f.IsDirectory)
	assert.Equal(t, 1.5, f.ModTime)

	camel := json.RawMessage(`{"name":"a.mp3","path":"/m/a.mp3","size":10,"isDirectory":true,"modTime":2.5,"permissions":"rw","contentType":"audio/mpeg"}`)
	decoded, err = decodeModulePayload(decoder, camel)
	require.NoError(t, err)
	f = decoded.(MediaFile)
	assert.True(t, f.IsDirectory)
	assert.Equal(t, 2.5, f.ModTime)
	assert.Equal(t, "audio/mpeg", f.ContentType)
}

func TestDecodeTelemetryPayloadIsPermissive(t *testing.T) {
	decoder := lookupDecoder("cpu")

	raw := json.RawMessage(`{"usage":12.3,"some_unmodeled_field":{"nested":true}}`)
	decoded, err := decodeModulePayload(decoder, raw)
	require.NoError(t, err)

	payload, ok := decoded.(TelemetryPayload)
	require.True(t, ok)
	assert.Equal(t, 12.3, payload["usage"])
}
