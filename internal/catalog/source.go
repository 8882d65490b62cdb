package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the service has no catalog for a channel.
	ErrNotFound = errors.New("catalog not found")
	// ErrService is returned when the service answers with an error object.
	ErrService = errors.New("catalog service error")
)

// Source retrieves the raw community emote list for one channel.
type Source interface {
	Fetch(ctx context.Context, channel string) ([]Record, error)
}

// decodeCatalog classifies a catalog body. The service answers with a JSON
// array of records, the bare number 404, or an object carrying "error".
func decodeCatalog(body []byte) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("decode catalog: empty body")
	}

	switch body[0] {
	case '[':
		var records []Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return records, nil

	case '{':
		var payload struct {
			Error   json.RawMessage `json:"error"`
			Message string          `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		if truthy(payload.Error) {
			return nil, fmt.Errorf("%w: %s", ErrService, errorText(payload.Error, payload.Message))
		}
		// An object without an error flag carries no records.
		return nil, nil
	}

	var status json.Number
	if err := json.Unmarshal(body, &status); err == nil && status.String() == "404" {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("decode catalog: unexpected body %.64q", body)
}

// truthy mirrors how the service's clients test the error field.
func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func errorText(raw json.RawMessage, message string) string {
	if message != "" {
		return message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
