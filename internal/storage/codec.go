package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec converts values to record payloads and back.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONCodec stores payloads as plain JSON.
type JSONCodec struct{}

// Encode marshals v to JSON
func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals JSON into v
func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ZstdCodec stores payloads as zstd-compressed JSON.
// Every payload is an independent zstd frame so readers can start at any
// record boundary.
type ZstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec creates a codec with its own encoder and decoder.
// Close releases the decoder's resources.
func NewZstdCodec() (*ZstdCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ZstdCodec{encoder: encoder, decoder: decoder}, nil
}

// Encode marshals v to JSON and compresses it
func (c *ZstdCodec) Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode decompresses data and unmarshals it into v
func (c *ZstdCodec) Decode(data []byte, v any) error {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompress payload: %w", err)
	}
	return json.Unmarshal(raw, v)
}

// Close releases the encoder and decoder.
func (c *ZstdCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// NewCodec returns a ZstdCodec when compress is set, JSONCodec otherwise.
func NewCodec(compress bool) (Codec, error) {
	if !compress {
		return JSONCodec{}, nil
	}
	return NewZstdCodec()
}
