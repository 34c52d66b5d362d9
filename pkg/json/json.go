// Package json provides pooled JSON encoding and decoding built on
// goccy/go-json. Encoders, decoders, and scratch buffers are recycled
// through sync.Pool to keep allocation pressure low on hot read paths.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var (
	encoderPool = sync.Pool{
		New: func() interface{} {
			return &pooledEncoder{}
		},
	}

	decoderPool = sync.Pool{
		New: func() interface{} {
			return &pooledDecoder{}
		},
	}

	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

type pooledEncoder struct {
	enc *gojson.Encoder
	w   io.Writer
}

type pooledDecoder struct {
	dec *gojson.Decoder
}

// GetEncoder returns a pooled encoder writing to w
func GetEncoder(w io.Writer) *gojson.Encoder {
	pe := encoderPool.Get().(*pooledEncoder)
	pe.w = w
	pe.enc = gojson.NewEncoder(w)
	return pe.enc
}

// PutEncoder returns an encoder to the pool
func PutEncoder(enc *gojson.Encoder) {
	if enc == nil {
		return
	}
	encoderPool.Put(&pooledEncoder{})
}

// GetDecoder returns a pooled decoder reading from r
func GetDecoder(r io.Reader) *gojson.Decoder {
	pd := decoderPool.Get().(*pooledDecoder)
	pd.dec = gojson.NewDecoder(r)
	return pd.dec
}

// PutDecoder returns a decoder to the pool
func PutDecoder(dec *gojson.Decoder) {
	if dec == nil {
		return
	}
	decoderPool.Put(&pooledDecoder{})
}

// GetBuffer returns a pooled buffer
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer returns a buffer to the pool after resetting it
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// Marshal marshals v using goccy/go-json
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent marshals v with indentation
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal unmarshals data into v using goccy/go-json
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalToWriter marshals v directly to a writer using a pooled encoder
func MarshalToWriter(w io.Writer, v interface{}) error {
	enc := GetEncoder(w)
	defer PutEncoder(enc)
	return enc.Encode(v)
}
