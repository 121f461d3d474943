package systembridge

import (
	"bytes"
	"encoding/json"
)

// ModuleDecoder converts one module's raw wire payload into a typed (or
// generically typed) Go value. The registry never returns an error for
// an unrecognized module name — the caller checks for a nil decoder and
// logs/drops, per spec §4.6 step 5.
type ModuleDecoder func(raw json.RawMessage) (any, error)

// TelemetryPayload is the generic decode target for every telemetry
// module whose schema is a declared non-goal of this library (battery,
// cpu, disks, displays, gpus, media, memory, networks, processes,
// sensors). Unexpected keys are tolerated by construction: it's a bag.
type TelemetryPayload map[string]any

func decodeTelemetryPayload(raw json.RawMessage) (any, error) {
	var v TelemetryPayload
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeSystem(raw json.RawMessage) (any, error) {
	var v System
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeMediaDirectory(raw json.RawMessage) (any, error) {
	var v MediaDirectory
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeMediaFile(raw json.RawMessage) (any, error) {
	var w mediaFileWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return w.toMediaFile(), nil
}

func decodeMediaFiles(raw json.RawMessage) (any, error) {
	var v MediaFiles
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeNotification(raw json.RawMessage) (any, error) {
	var v Notification
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeKeyboardKey(raw json.RawMessage) (any, error) {
	var v KeyboardKey
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeKeyboardText(raw json.RawMessage) (any, error) {
	var v KeyboardText
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeOpenPath(raw json.RawMessage) (any, error) {
	var v OpenPath
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeOpenURL(raw json.RawMessage) (any, error) {
	var v OpenURL
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeGenericResponse(raw json.RawMessage) (any, error) {
	var v Response
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// moduleRegistry maps module-name (or, for the "response" entry, the
// generic-fallback key used by accept-other-types mode) to its decoder.
// Immutable after init, per spec §4.2.
var moduleRegistry = map[string]ModuleDecoder{
	"battery":           decodeTelemetryPayload,
	"cpu":               decodeTelemetryPayload,
	"disks":             decodeTelemetryPayload,
	"displays":          decodeTelemetryPayload,
	"gpus":              decodeTelemetryPayload,
	"media":             decodeTelemetryPayload,
	"memory":            decodeTelemetryPayload,
	"networks":          decodeTelemetryPayload,
	"processes":         decodeTelemetryPayload,
	"sensors":           decodeTelemetryPayload,
	"system":            decodeSystem,
	"media_directories": decodeMediaDirectory,
	"media_file":        decodeMediaFile,
	"media_files":       decodeMediaFiles,
	"notification":      decodeNotification,
	"keyboard_key":      decodeKeyboardKey,
	"keyboard_text":     decodeKeyboardText,
	"open_path":         decodeOpenPath,
	"open_url":          decodeOpenURL,
	"response":          decodeGenericResponse,
}

// lookupDecoder returns the decoder registered for module, or nil if the
// module name is unrecognized.
func lookupDecoder(module string) ModuleDecoder {
	return moduleRegistry[module]
}

// decodeModulePayload applies decoder to raw, mapping array payloads
// element-wise to a []any of decoded values and object payloads directly,
// per spec §4.2's "array vs scalar decoder" rule. A nil/empty raw yields
// (nil, nil).
func decodeModulePayload(decoder ModuleDecoder, raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, err
		}
		out := make([]any, 0, len(elements))
		for _, el := range elements {
			decoded, err := decoder(el)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded)
		}
		return out, nil
	}

	return decoder(trimmed)
}
