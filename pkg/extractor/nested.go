// Package extractor flattens nested API response bodies into flat output
// records. Financial report endpoints return documents where the interesting
// rows sit several levels deep, with identifying fields (account ids, section
// names) living on the ancestor objects rather than the rows themselves.
package extractor

import (
	"fmt"

	"github.com/ajitpratap0/railstream/pkg/errors"
)

// NestedRecordExtractor walks a parsed JSON document along a path of field
// names and returns every leaf record found, copying configured propagate
// fields from each ancestor object onto its descendants.
type NestedRecordExtractor struct {
	fieldPath       []string
	propagateFields []string
	prefixKey       string
}

// NewNestedRecordExtractor creates an extractor. The field path must be
// non-empty; propagate fields and the prefix key are optional.
func NewNestedRecordExtractor(fieldPath, propagateFields []string, prefixKey string) (*NestedRecordExtractor, error) {
	if len(fieldPath) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "extractor field path must not be empty")
	}

	return &NestedRecordExtractor{
		fieldPath:       fieldPath,
		propagateFields: propagateFields,
		prefixKey:       prefixKey,
	}, nil
}

// Extract returns all leaf records reachable from the document along the
// configured field path, in depth-first document order. Elements are
// enriched in place: every propagate field present on an ancestor object is
// copied onto its descendants, the nearest ancestor winning on conflict.
func (e *NestedRecordExtractor) Extract(document map[string]interface{}) ([]map[string]interface{}, error) {
	var records []map[string]interface{}
	if err := e.walk(document, e.fieldPath, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (e *NestedRecordExtractor) walk(obj map[string]interface{}, path []string, out *[]map[string]interface{}) error {
	field := path[0]

	value, ok := obj[field]
	if !ok {
		return errors.New(errors.ErrorTypeMissingField,
			fmt.Sprintf("field %q is missing from the response object", field))
	}

	elements, ok := value.([]interface{})
	if !ok {
		return errors.New(errors.ErrorTypeData,
			fmt.Sprintf("field %q is not an array", field))
	}

	for _, element := range elements {
		record, ok := element.(map[string]interface{})
		if !ok {
			return errors.New(errors.ErrorTypeData,
				fmt.Sprintf("elements of %q are not objects", field))
		}

		for _, propagate := range e.propagateFields {
			if v, present := obj[propagate]; present {
				record[propagate] = v
			}
		}

		if len(path) > 1 {
			if err := e.walk(record, path[1:], out); err != nil {
				return err
			}
			continue
		}

		if e.prefixKey != "" {
			record = map[string]interface{}{e.prefixKey: record}
		}
		*out = append(*out, record)
	}

	return nil
}
