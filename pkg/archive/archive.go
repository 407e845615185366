// Package archive implements the subset of Apple's bplist00 binary property
// list format and NSKeyedArchiver object-graph convention that the
// LookinServer wire protocol uses to carry request arguments and response
// payloads inside frame bodies.
package archive

import (
	lerrors "github.com/isnine/lookinmcp/pkg/errors"
)

// ServerError is the decoded shape of a LookinServer error response: an
// error code plus a human-readable description, both carried as plain
// fields on the archived root dictionary rather than a typed class.
type ServerError struct {
	Code        int64
	Description string
}

// ResponseEnvelope is the decoded shape every LookinServer response payload
// takes once its keyed archive has been resolved: the actual data, an
// optional server-reported error, and a background-state flag some
// responses piggyback to let the client short-circuit stale UI reads.
type ResponseEnvelope struct {
	Data              any
	Error             *ServerError
	AppIsInBackground bool
}

// EncodeDict archives a plain map[string]any as a request payload, the shape
// every outbound LookinServer request body takes (a top-level dictionary of
// named arguments, no custom classes required).
func EncodeDict(fields map[string]any) []byte {
	return EncodeKeyedArchive(fields, nil)
}

// EncodeAttachment archives a single *KeyedObject, for requests that must
// send a classed value (for example an attribute modification payload whose
// new value is itself an archived NSValue-wrapped struct).
func EncodeAttachment(obj *KeyedObject) []byte {
	return EncodeKeyedArchive(obj, DefaultClassMap())
}

// DecodeResponse parses a LookinServer response payload into a
// ResponseEnvelope. The root object is expected to be a dictionary (either a
// map[string]any or a *KeyedObject, both of which this function normalizes
// into the envelope's typed fields); anything else is an invalid frame.
func DecodeResponse(payload []byte) (*ResponseEnvelope, error) {
	root, err := DecodeKeyedArchive(payload, DefaultClassMap())
	if err != nil {
		return nil, err
	}

	fields, err := dictFields(root)
	if err != nil {
		return nil, err
	}

	env := &ResponseEnvelope{Data: fields["data"]}

	if bg, ok := fields["appIsInBackground"].(bool); ok {
		env.AppIsInBackground = bg
	}

	if errFields, ok := fields["error"]; ok && errFields != nil {
		sub, err := dictFields(errFields)
		if err != nil {
			return nil, lerrors.NewInvalidFrameError("malformed server error payload", err)
		}
		serverErr := &ServerError{}
		if code, ok := asInt64(sub["code"]); ok {
			serverErr.Code = code
		}
		if desc, ok := sub["description"].(string); ok {
			serverErr.Description = desc
		} else if desc, ok := sub["message"].(string); ok {
			serverErr.Description = desc
		}
		env.Error = serverErr
	}

	return env, nil
}

func dictFields(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case *KeyedObject:
		return t.Fields, nil
	default:
		return nil, lerrors.NewInvalidFrameError("expected archived root to be a dictionary", nil)
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
