package kafka

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
)

// ContentTypeHeader names the header carrying the codec of a reply
const ContentTypeHeader = "content-type"

// Reply is published for every consumed request, keyed like the request.
// Exactly one of Comparison and Error is set.
type Reply struct {
	Comparison *models.GreeksComparison `json:"comparison,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Kind       string                   `json:"kind,omitempty"`
}

// Codec encodes replies for the results topic
type Codec interface {
	ContentType() string
	Encode(r *Reply) ([]byte, error)
	Decode(data []byte) (*Reply, error)
}

// NewCodec returns the codec for an encoding name: json or proto
func NewCodec(encoding string) (Codec, error) {
	switch strings.ToLower(encoding) {
	case "", "json":
		return JSONCodec{}, nil
	case "proto", "protobuf":
		return ProtoCodec{}, nil
	}
	return nil, fmt.Errorf("kafka: unknown encoding %q", encoding)
}

// JSONCodec writes replies as JSON documents
type JSONCodec struct{}

func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) Encode(r *Reply) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) Decode(data []byte) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return &r, nil
}

// ProtoCodec writes replies as a protobuf google.protobuf.Struct with the same
// field names as the JSON form, so consumers need no generated schema
type ProtoCodec struct{}

func (ProtoCodec) ContentType() string { return "application/x-protobuf" }

func (ProtoCodec) Encode(r *Reply) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build reply struct: %w", err)
	}
	return proto.Marshal(s)
}

func (ProtoCodec) Decode(data []byte) (*Reply, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}

	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var r Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return &r, nil
}
