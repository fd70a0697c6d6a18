package message

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func Encode(msg proto.Message) ([]byte, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func Decode(data []byte, msg proto.Message) error {
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// EncodeFields marshals a flat key/value set as a google.protobuf.Struct.
// Values must be representable by structpb.NewValue.
func EncodeFields(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return Encode(s)
}

// DecodeFields is the inverse of EncodeFields. Numbers come back as float64.
func DecodeFields(data []byte) (map[string]any, error) {
	s := &structpb.Struct{}
	if err := Decode(data, s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}
