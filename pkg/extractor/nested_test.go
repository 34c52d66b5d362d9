package extractor

import (
	"testing"

	"github.com/ajitpratap0/railstream/pkg/errors"
	jsonpool "github.com/ajitpratap0/railstream/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDocument(t *testing.T, payload string) map[string]interface{} {
	t.Helper()

	var document map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal([]byte(payload), &document))
	return document
}

func TestExtractSingleLevel(t *testing.T) {
	document := parseDocument(t, `{
		"reports": [
			{"amount": 100},
			{"amount": 200}
		]
	}`)

	e, err := NewNestedRecordExtractor([]string{"reports"}, nil, "")
	require.NoError(t, err)

	records, err := e.Extract(document)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, float64(100), records[0]["amount"])
	assert.Equal(t, float64(200), records[1]["amount"])
}

func TestExtractPropagatesAncestorFields(t *testing.T) {
	document := parseDocument(t, `{
		"sections": [
			{
				"x": "first",
				"rows": [
					{"amount": 1},
					{"amount": 2}
				]
			},
			{
				"x": "second",
				"rows": [
					{"amount": 3}
				]
			}
		]
	}`)

	e, err := NewNestedRecordExtractor([]string{"sections", "rows"}, []string{"x"}, "")
	require.NoError(t, err)

	records, err := e.Extract(document)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Depth-first document order is guaranteed.
	assert.Equal(t, float64(1), records[0]["amount"])
	assert.Equal(t, float64(2), records[1]["amount"])
	assert.Equal(t, float64(3), records[2]["amount"])

	assert.Equal(t, "first", records[0]["x"])
	assert.Equal(t, "first", records[1]["x"])
	assert.Equal(t, "second", records[2]["x"])
}

func TestExtractPropagationOverwritesLeafField(t *testing.T) {
	document := parseDocument(t, `{
		"sections": [
			{
				"x": "ancestor",
				"rows": [
					{"amount": 1, "x": "leaf"}
				]
			}
		]
	}`)

	e, err := NewNestedRecordExtractor([]string{"sections", "rows"}, []string{"x"}, "")
	require.NoError(t, err)

	records, err := e.Extract(document)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ancestor", records[0]["x"])
}

func TestExtractNearestAncestorWins(t *testing.T) {
	document := parseDocument(t, `{
		"a": [
			{
				"x": "outer",
				"b": [
					{
						"x": "inner",
						"c": [
							{"amount": 1}
						]
					}
				]
			}
		]
	}`)

	e, err := NewNestedRecordExtractor([]string{"a", "b", "c"}, []string{"x"}, "")
	require.NoError(t, err)

	records, err := e.Extract(document)
	require.NoError(t, err)
	require.Len(t, records, 1)
	// The intermediate object's own x was first overwritten by its parent,
	// so "outer" reaches the leaf via the chain of copies.
	assert.Equal(t, "outer", records[0]["x"])
}

func TestExtractPrefixKeyWrapsRecords(t *testing.T) {
	document := parseDocument(t, `{
		"reports": [
			{"amount": 100}
		]
	}`)

	e, err := NewNestedRecordExtractor([]string{"reports"}, nil, "p")
	require.NoError(t, err)

	records, err := e.Extract(document)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0], 1)

	inner, ok := records[0]["p"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(100), inner["amount"])
}

func TestExtractEmptyFieldPath(t *testing.T) {
	_, err := NewNestedRecordExtractor(nil, nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExtractMissingPathSegment(t *testing.T) {
	document := parseDocument(t, `{
		"sections": [
			{"rows": [{"amount": 1}]},
			{"other": []}
		]
	}`)

	e, err := NewNestedRecordExtractor([]string{"sections", "rows"}, nil, "")
	require.NoError(t, err)

	_, err = e.Extract(document)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingField))
	assert.False(t, errors.IsRetryable(err))
}

func TestExtractNonArrayField(t *testing.T) {
	document := parseDocument(t, `{"reports": {"amount": 100}}`)

	e, err := NewNestedRecordExtractor([]string{"reports"}, nil, "")
	require.NoError(t, err)

	_, err = e.Extract(document)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestExtractEmptySequenceYieldsNoRecords(t *testing.T) {
	document := parseDocument(t, `{"reports": []}`)

	e, err := NewNestedRecordExtractor([]string{"reports"}, nil, "")
	require.NoError(t, err)

	records, err := e.Extract(document)
	require.NoError(t, err)
	assert.Empty(t, records)
}
