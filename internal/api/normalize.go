package api

import (
	"bytes"
	"encoding/json"

	"github.com/angelmondragon/storefront-client/pkg/types"
)

const genericBodyError = "response body was empty or not valid JSON"

// Envelope is the canonical interpretation of a storefront API response.
// Every raw response normalizes into this shape; nothing downstream touches
// the wire format directly.
type Envelope struct {
	Success bool
	Status  int
	Message string
	Data    json.RawMessage
}

type responseShape struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Normalize converts a transport status and raw body into an Envelope. It
// never fails: empty bodies count as an absent success flag, and unparseable
// bodies degrade to a failure envelope with a generic message.
//
// Success is true only when the transport status is 2xx AND the payload's
// explicit success flag is true or absent. Treating an absent flag as
// success is a deliberate leniency for endpoints that do not echo one.
func Normalize(status int, body []byte) Envelope {
	env := Envelope{Status: status}
	transportOK := status >= 200 && status < 300

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		env.Success = transportOK
		env.Data = json.RawMessage(`{"message":"` + genericBodyError + `"}`)
		return env
	}

	// Bare arrays are a legacy cart shape; no flag to consult.
	if trimmed[0] == '[' {
		if !json.Valid(trimmed) {
			env.Success = false
			env.Message = genericBodyError
			env.Data = json.RawMessage(`{"message":"` + genericBodyError + `"}`)
			return env
		}
		env.Success = transportOK
		env.Data = append(json.RawMessage(nil), trimmed...)
		return env
	}

	var parsed responseShape
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		env.Success = false
		env.Message = genericBodyError
		env.Data = json.RawMessage(`{"message":"` + genericBodyError + `"}`)
		return env
	}

	env.Success = transportOK && (parsed.Success == nil || *parsed.Success)
	env.Message = parsed.Message
	if env.Message == "" {
		env.Message = parsed.Error
	}

	// Payloads arrive both enveloped ({"data": {...}}) and flat; unwrap the
	// data field when present so downstream decoding sees one shape.
	if data := bytes.TrimSpace(parsed.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		env.Data = append(json.RawMessage(nil), data...)
	} else {
		env.Data = append(json.RawMessage(nil), trimmed...)
	}
	return env
}

type itemsPayload struct {
	Items     []types.CartItem `json:"items"`
	CartItems []types.CartItem `json:"cartItems"`
}

// DecodeItems resolves the tolerated cart payload shapes ("items", legacy
// "cartItems", or a bare array) into the canonical item list. Unrecognized
// shapes return ok=false so the caller can reject and log them.
func DecodeItems(data json.RawMessage) ([]types.CartItem, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}

	if trimmed[0] == '[' {
		var items []types.CartItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false
		}
		return items, true
	}

	var payload itemsPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, false
	}
	if payload.Items != nil {
		return payload.Items, true
	}
	if payload.CartItems != nil {
		return payload.CartItems, true
	}
	return nil, false
}
