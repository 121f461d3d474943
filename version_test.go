package systembridge

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmo001/systembridge-go/testserver"
)

func TestCheckVersion3Supported(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()
	srv.SetSystemResponse(http.StatusOK, map[string]any{"version": "4.1.0"})

	probe := NewVersionProbe(newTestConfig(t, srv))

	version, err := probe.CheckVersion3(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.1.0", version)
}

func TestCheckVersion3NotFound(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()
	// SetSystemResponse never called: handler defaults to 404.

	probe := NewVersionProbe(newTestConfig(t, srv))

	version, err := probe.CheckVersion3(context.Background())
	require.NoError(t, err)
	assert.Empty(t, version)
}

func TestCheckVersion2LegacyPrefix(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()
	srv.SetInformationResponse(http.StatusOK, map[string]any{"version": "2.3.1"})

	probe := NewVersionProbe(newTestConfig(t, srv))

	version, err := probe.CheckVersion2(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.3.1", version)
}

func TestCheckSupportedPrefersV3Endpoint(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()
	srv.SetSystemResponse(http.StatusOK, map[string]any{"version": "4.0.2"})
	srv.SetInformationResponse(http.StatusOK, map[string]any{"version": "2.0.0"})

	probe := NewVersionProbe(newTestConfig(t, srv))

	supported, err := probe.CheckSupported(context.Background(), "4.0.2")
	require.NoError(t, err)
	assert.True(t, supported)
}

func TestCheckSupportedFallsBackToLegacy(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()
	srv.SetInformationResponse(http.StatusOK, map[string]any{"version": "2.9.9"})

	probe := NewVersionProbe(newTestConfig(t, srv))

	supported, err := probe.CheckSupported(context.Background(), "4.0.2")
	require.NoError(t, err)
	assert.False(t, supported)
}

func TestCheckSupportedNeitherEndpointPresent(t *testing.T) {
	srv := testserver.New("abc123")
	defer srv.Close()

	probe := NewVersionProbe(newTestConfig(t, srv))

	supported, err := probe.CheckSupported(context.Background(), "4.0.2")
	require.NoError(t, err)
	assert.False(t, supported)
}

func TestCompareSemver(t *testing.T) {
	assert.Equal(t, 0, compareSemver("4.0.2", "4.0.2"))
	assert.Equal(t, 1, compareSemver("4.1.0", "4.0.2"))
	assert.Equal(t, -1, compareSemver("3.9.9", "4.0.2"))
	assert.Equal(t, 1, compareSemver("v4.0.2", "4.0.1"))
	assert.Equal(t, 0, compareSemver("4.0.2-beta.1", "4.0.2"))
}
