package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	in := map[string]interface{}{
		"businessName": "Acme",
		"count":        float64(3),
	}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalToWriter(t *testing.T) {
	var buf bytes.Buffer
	err := MarshalToWriter(&buf, map[string]string{"service": "accounting"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"service":"accounting"}`, buf.String())
}

func TestPooledEncoder(t *testing.T) {
	var buf bytes.Buffer

	enc := GetEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]int{"a": 1}))
	PutEncoder(enc)

	assert.JSONEq(t, `{"a":1}`, buf.String())
}

func TestPooledDecoder(t *testing.T) {
	dec := GetDecoder(strings.NewReader(`{"postedDate":"2024-01-10"}`))
	defer PutDecoder(dec)

	var out map[string]string
	require.NoError(t, dec.Decode(&out))
	assert.Equal(t, "2024-01-10", out["postedDate"])
}

func TestBufferPoolResets(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("scratch")
	PutBuffer(buf)

	reused := GetBuffer()
	defer PutBuffer(reused)
	assert.Zero(t, reused.Len(), "pooled buffers should come back empty")
}

func TestUnmarshalInvalid(t *testing.T) {
	var out map[string]interface{}
	assert.Error(t, Unmarshal([]byte(`{"broken`), &out))
}
