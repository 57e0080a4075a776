package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"

	"quill/internal/util/jsonutil"
)

// jsonCodec replaces connect's protojson codec so plain Go structs can be
// served. Registered under "json", it answers application/json requests.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return jsonutil.MarshalNoEscape(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// WithJSON is the client option matching the handlers' codec.
func WithJSON() connect.ClientOption {
	return connect.WithCodec(jsonCodec{})
}
