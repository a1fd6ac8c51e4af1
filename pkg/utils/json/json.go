// Package json is a thin JSON facade. It uses sonic on the architectures
// sonic supports (amd64/arm64) and falls back to encoding/json elsewhere,
// so callers never need to care which implementation is active.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v any) ([]byte, error)

	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v any) error

	// NewEncoder returns a streaming encoder for w.
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder returns a streaming decoder for r.
	NewDecoder func(r io.Reader) Decoder
)

// Encoder encodes values to an underlying writer.
type Encoder interface {
	Encode(v any) error
}

// Decoder decodes values from an underlying reader.
type Decoder interface {
	Decode(v any) error
}

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigDefault
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		return
	}
	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}
