package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"speakcity/traffic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode converts any JSON-tagged value into a structpb.Struct. Numbers become
// float64 values, so integers are exact only up to 2^53.
func Encode(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// Decode fills v from a structpb.Struct produced by Encode.
func Decode(s *structpb.Struct, v interface{}) error {
	if s == nil {
		return status.Error(codes.InvalidArgument, "empty message")
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// StatusFromError maps engine errors onto gRPC status codes. Errors that
// already carry a status pass through unchanged.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, traffic.ErrUnknownStreet),
		errors.Is(err, traffic.ErrUnknownIntersection),
		errors.Is(err, traffic.ErrUnknownLight),
		errors.Is(err, traffic.ErrUnknownCar):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, traffic.ErrInvalidDirection),
		errors.Is(err, traffic.ErrInvalidColor),
		errors.Is(err, traffic.ErrInvalidDensity),
		errors.Is(err, traffic.ErrInvalidInterval),
		errors.Is(err, traffic.ErrUnknownAction):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
