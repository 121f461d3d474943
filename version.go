package systembridge

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kataras/golog"
)

// VersionProbe is the one-shot HTTP version check (C4): it decides
// whether a backend is new enough to talk to, per spec §4.4. It is the
// only component in this library with retry/fallback logic.
type VersionProbe struct {
	http *HTTPClient
}

// NewVersionProbe builds a VersionProbe over the given configuration's
// HTTP endpoint.
func NewVersionProbe(config Configuration) *VersionProbe {
	return &VersionProbe{http: NewHTTPClient(config)}
}

// CheckVersion3 calls GET /api/data/system and returns the reported
// version if it parses as >= 3.0.0. A 404 is treated as "endpoint not
// present" ("", nil); any other non-2xx status propagates.
func (v *VersionProbe) CheckVersion3(ctx context.Context) (string, error) {
	resp, err := v.http.Get(ctx, "/api/data/system")
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}

	var system System
	if err := remarshalInto(resp, &system); err != nil {
		return "", &BadMessageError{Reason: err.Error()}
	}

	if system.Version == "" {
		return "", nil
	}
	if compareSemver(system.Version, "3.0.0") >= 0 {
		return system.Version, nil
	}
	return "", nil
}

// CheckVersion2 calls GET /information, a legacy endpoint, and reports
// its version if it looks like a v2.x release ("2..." or "v2...").
func (v *VersionProbe) CheckVersion2(ctx context.Context) (string, error) {
	resp, err := v.http.Get(ctx, "/information")
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}

	m, ok := resp.(map[string]any)
	if !ok {
		return "", nil
	}
	version, _ := m["version"].(string)
	if version == "" {
		return "", nil
	}
	if strings.HasPrefix(version, "2") || strings.HasPrefix(version, "v2") {
		return version, nil
	}
	return "", nil
}

// CheckSupported reports whether the backend is running a version >=
// supportedVersion, per spec §4.4: try the v3+ endpoint first, then fall
// back to the legacy v2 endpoint. The probe does not read
// Configuration.SupportedVersion itself; an empty supportedVersion
// compares as 0.0.0.
func (v *VersionProbe) CheckSupported(ctx context.Context, supportedVersion string) (bool, error) {
	version, err := v.CheckVersion3(ctx)
	if err != nil {
		return false, err
	}
	if version != "" {
		return compareSemver(version, supportedVersion) >= 0, nil
	}

	version2, err := v.CheckVersion2(ctx)
	if err != nil {
		return false, err
	}
	if version2 != "" {
		golog.Infof("systembridge: detected legacy v2 backend: %s", version2)
		return false, nil
	}

	return false, nil
}

func isNotFound(err error) bool {
	var connErr *ConnectionError
	if ce, ok := err.(*ConnectionError); ok {
		connErr = ce
	} else {
		return false
	}
	return connErr.Status == "404"
}

// remarshalInto round-trips an any (already JSON-decoded by HTTPClient)
// back through JSON into a typed struct, since HTTPClient hands back
// map[string]any/[]any rather than raw bytes.
func remarshalInto(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// compareSemver compares two "major.minor.patch[-pre]" version strings,
// returning -1, 0 or 1. Non-numeric components compare as 0 so a missing
// patch/minor behaves like ".0".
func compareSemver(a, b string) int {
	aParts := semverParts(a)
	bParts := semverParts(b)
	for i := 0; i < 3; i++ {
		if aParts[i] != bParts[i] {
			if aParts[i] < bParts[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func semverParts(v string) [3]int {
	v = strings.TrimPrefix(v, "v")
	// drop any pre-release/build suffix (e.g. "4.0.2-beta.1")
	if idx := strings.IndexAny(v, "-+"); idx >= 0 {
		v = v[:idx]
	}
	fields := strings.SplitN(v, ".", 3)
	var out [3]int
	for i := 0; i < len(fields) && i < 3; i++ {
		n, _ := strconv.Atoi(fields[i])
		out[i] = n
	}
	return out
}
