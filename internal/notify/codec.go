package notify

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes envelopes for external brokers
type Codec interface {
	Marshal(v any) ([]byte, error)
	ContentType() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) ContentType() string           { return "application/json" }

type cborCodec struct {
	mode cbor.EncMode
}

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.mode.Marshal(v) }
func (cborCodec) ContentType() string             { return "application/cbor" }

// NewCodec returns the codec registered under name ("json" or "cbor")
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		opts := cbor.CoreDetEncOptions()
		opts.Time = cbor.TimeRFC3339Nano
		mode, err := opts.EncMode()
		if err != nil {
			return nil, fmt.Errorf("cbor enc mode: %w", err)
		}
		return cborCodec{mode: mode}, nil
	default:
		return nil, fmt.Errorf("unknown event codec %q", name)
	}
}
