package runs

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Artifact kinds stored in run_artifacts.
const (
	artifactQTable    = "qtable"
	artifactLengths   = "lengths"
	artifactSaturated = "saturated"
	artifactDepths    = "depths"
)

func encodeBlob(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode msgpack: %w", err)
	}
	return data, nil
}

func decodeBlob(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode msgpack: %w", err)
	}
	return nil
}

// EncodeArtifacts packs artifacts into a single msgpack document, as used by
// the archive.
func EncodeArtifacts(a *Artifacts) ([]byte, error) {
	return encodeBlob(a)
}

// DecodeArtifacts is the inverse of EncodeArtifacts.
func DecodeArtifacts(data []byte) (*Artifacts, error) {
	var a Artifacts
	if err := decodeBlob(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json: %w", err)
	}
	return string(data), nil
}
