package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Serializer converts envelopes to and from bytes. Decoded payloads use
// generic JSON-shaped values: map[string]any, []any, string, float64,
// bool and nil.
//
// Every number decodes as float64, so integers beyond 2^53 lose
// precision. Send such values as strings.
type Serializer interface {
	Name() string
	Marshal(env Envelope) ([]byte, error)
	Unmarshal(data []byte) (Envelope, error)
}

// Serializer names accepted by SerializerByName.
const (
	SerializerJSON  = "json"
	SerializerProto = "proto"
)

// SerializerByName returns the serializer for name. An empty name
// selects JSON.
func SerializerByName(name string) (Serializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SerializerJSON:
		return JSON{}, nil
	case SerializerProto, "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}

// JSON encodes envelopes as {"event": ..., "payload": ...}.
type JSON struct{}

// Name returns "json".
func (JSON) Name() string { return SerializerJSON }

// Marshal encodes env as a JSON object.
func (JSON) Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(NewEnvelope(env.Event, env.Payload))
}

// Unmarshal decodes a JSON object into an Envelope.
func (JSON) Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return NewEnvelope(env.Event, env.Payload), nil
}

// Proto encodes envelopes as a google.protobuf.Struct with the fields
// "event" and "payload". Peers must agree on the serializer.
type Proto struct{}

// Name returns "proto".
func (Proto) Name() string { return SerializerProto }

// Marshal encodes env in protobuf wire format.
func (Proto) Marshal(env Envelope) ([]byte, error) {
	payload, err := toValue(NewEnvelope(env.Event, env.Payload).Payload)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}

	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"event":   structpb.NewStringValue(env.Event),
		"payload": payload,
	}}
	return proto.Marshal(s)
}

// Unmarshal decodes protobuf wire format into an Envelope.
func (Proto) Unmarshal(data []byte) (Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Envelope{}, err
	}

	event := s.GetFields()["event"].GetStringValue()
	if event == "" {
		return Envelope{}, ErrMissingEvent
	}

	var payload any
	if v, ok := s.GetFields()["payload"]; ok {
		payload = v.AsInterface()
	}
	return NewEnvelope(event, payload), nil
}

// toValue converts v to a structpb.Value. Types structpb does not accept
// directly (typed slices, structs) are normalized through JSON first.
func toValue(v any) (*structpb.Value, error) {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}
