package api

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of the file service encoding.
const CodecName = "handlefs"

// Codec marshals file service messages for gRPC.
type Codec struct{}

var _ encoding.Codec = Codec{}

func init() {
	encoding.RegisterCodec(Codec{})
}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("api: cannot marshal %T", v)
	}
	return Marshal(m)
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("api: cannot unmarshal into %T", v)
	}
	return Unmarshal(data, m)
}

// Name implements encoding.Codec.
func (Codec) Name() string {
	return CodecName
}
