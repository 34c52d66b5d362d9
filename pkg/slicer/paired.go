// Package slicer pairs two independent slice producers into one slice
// sequence for incremental sync. The outer producer enumerates connections,
// the inner one date windows; the pairing yields their Cartesian product and
// tracks a two-level cursor keyed by fields of the connection slice.
package slicer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
	"go.uber.org/zap"
)

// Default cursor field names used by the Railz reporting API.
const (
	DefaultSliceKeyField = "slice_key"
	DefaultOuterKeyField = "businessName"
	DefaultInnerKeyField = "serviceName"
	DefaultCursorField   = "postedDate"
)

// PairedSliceCursorConfig names the fields the cursor is keyed by. Zero
// values fall back to the Railz defaults.
type PairedSliceCursorConfig struct {
	// SliceKeyField is the sub-mapping on each outer slice that carries
	// the identifying key fields.
	SliceKeyField string `json:"slice_key_field,omitempty"`
	// OuterKeyField and InnerKeyField are read from the slice key
	// sub-mapping and form the two cursor levels.
	OuterKeyField string `json:"outer_key_field,omitempty"`
	InnerKeyField string `json:"inner_key_field,omitempty"`
	// CursorField is the record field whose maximum seen value is stored.
	CursorField string `json:"cursor_field,omitempty"`
}

// PairedSliceCursor yields the Cartesian product of two slice producers and
// maintains a nested cursor: outer key, then inner key, then the maximum
// seen cursor value. State is mutated by a single logical caller between
// slice consumptions; the mutex only guards against state reads from
// checkpointing goroutines.
type PairedSliceCursor struct {
	outer  core.SliceProducer
	inner  core.SliceProducer
	config PairedSliceCursorConfig
	logger *zap.Logger

	mu     sync.RWMutex
	cursor core.State
}

// NewPairedSliceCursor creates a cursor over the given producers. The outer
// producer drives the connection dimension, the inner one the date dimension.
func NewPairedSliceCursor(outer, inner core.SliceProducer, cfg PairedSliceCursorConfig, logger *zap.Logger) (*PairedSliceCursor, error) {
	if outer == nil || inner == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "both slice producers are required")
	}

	if cfg.SliceKeyField == "" {
		cfg.SliceKeyField = DefaultSliceKeyField
	}
	if cfg.OuterKeyField == "" {
		cfg.OuterKeyField = DefaultOuterKeyField
	}
	if cfg.InnerKeyField == "" {
		cfg.InnerKeyField = DefaultInnerKeyField
	}
	if cfg.CursorField == "" {
		cfg.CursorField = DefaultCursorField
	}

	return &PairedSliceCursor{
		outer:  outer,
		inner:  inner,
		config: cfg,
		logger: logger.With(zap.String("component", "paired_slice_cursor")),
		cursor: make(core.State),
	}, nil
}

// StreamSlices yields, for every outer slice a, every inner slice b computed
// under the sub-state stored for a's key pair, merged as a then b. Inner
// fields win on key collision. Slices arrive grouped by outer slice, in
// producer order.
func (c *PairedSliceCursor) StreamSlices(ctx context.Context, mode core.SyncMode, state core.State) (*core.SliceStream, error) {
	// Producers run under a derived context so an error or abandoned
	// consumer unblocks them instead of leaving a goroutine stuck on an
	// unbuffered send.
	ctx, cancel := context.WithCancel(ctx)

	outerStream, err := c.outer.StreamSlices(ctx, mode, state)
	if err != nil {
		cancel()
		return nil, err
	}

	slices := make(chan core.StreamSlice)
	errs := make(chan error, 1)

	go func() {
		defer cancel()
		defer close(slices)
		defer close(errs)

		for a := range outerStream.Slices {
			outerKey, innerKey, err := c.sliceKeys(a)
			if err != nil {
				errs <- err
				return
			}

			innerStream, err := c.inner.StreamSlices(ctx, mode, subState(state, outerKey, innerKey))
			if err != nil {
				errs <- err
				return
			}

			for b := range innerStream.Slices {
				merged := make(core.StreamSlice, len(a)+len(b))
				for k, v := range a {
					merged[k] = v
				}
				for k, v := range b {
					merged[k] = v
				}

				select {
				case slices <- merged:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if err := drainErrors(innerStream.Errors); err != nil {
				errs <- err
				return
			}
		}

		if err := drainErrors(outerStream.Errors); err != nil {
			errs <- err
		}
	}()

	return &core.SliceStream{Slices: slices, Errors: errs}, nil
}

// UpdateCursor advances the cursor from a processed record. With a record,
// the stored value for the slice's key pair becomes the null-safe maximum of
// the existing value and the record's cursor field. With a nil record the
// cursor is replaced wholesale by the slice, which seeds or restores state.
func (c *PairedSliceCursor) UpdateCursor(slice core.StreamSlice, record map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record == nil {
		restored := make(core.State, len(slice))
		for k, v := range slice {
			restored[k] = v
		}
		c.cursor = restored
		c.logger.Debug("cursor restored from slice", zap.Any("cursor", restored))
		return nil
	}

	outerKey, innerKey, err := c.sliceKeys(slice)
	if err != nil {
		return err
	}

	value, present := record[c.config.CursorField]
	if !present || value == nil {
		return nil
	}

	outerLevel := vivify(c.cursor, outerKey)
	innerLevel := vivify(outerLevel, innerKey)

	existing, has := innerLevel[c.config.CursorField]
	if !has || existing == nil || less(existing, value) {
		innerLevel[c.config.CursorField] = value
	}

	return nil
}

// GetStreamState returns a copy of the full cursor mapping, suitable for
// persistence and later replay into StreamSlices.
func (c *PairedSliceCursor) GetStreamState() core.State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := make(core.State, len(c.cursor))
	for k, v := range c.cursor {
		state[k] = v
	}
	return state
}

// sliceKeys extracts the outer and inner cursor keys from a slice's key
// sub-mapping. A slice without both keys is a configuration bug, not a
// recoverable runtime condition.
func (c *PairedSliceCursor) sliceKeys(slice core.StreamSlice) (string, string, error) {
	key, ok := asMap(slice[c.config.SliceKeyField])
	if !ok {
		return "", "", errors.New(errors.ErrorTypeMalformedSlice,
			fmt.Sprintf("slice is missing the %q sub-mapping", c.config.SliceKeyField))
	}

	outerKey, ok := key[c.config.OuterKeyField].(string)
	if !ok {
		return "", "", errors.New(errors.ErrorTypeMalformedSlice,
			fmt.Sprintf("slice key is missing the %q field", c.config.OuterKeyField))
	}

	innerKey, ok := key[c.config.InnerKeyField].(string)
	if !ok {
		return "", "", errors.New(errors.ErrorTypeMalformedSlice,
			fmt.Sprintf("slice key is missing the %q field", c.config.InnerKeyField))
	}

	return outerKey, innerKey, nil
}

// subState digs the per-pair sub-state out of a persisted state mapping.
// Absent levels yield an empty state.
func subState(state core.State, outerKey, innerKey string) core.State {
	outer, ok := asMap(state[outerKey])
	if !ok {
		return core.State{}
	}
	inner, ok := asMap(outer[innerKey])
	if !ok {
		return core.State{}
	}

	sub := make(core.State, len(inner))
	for k, v := range inner {
		sub[k] = v
	}
	return sub
}

// vivify returns the nested mapping under key, creating it on demand.
func vivify(m map[string]interface{}, key string) map[string]interface{} {
	if level, ok := asMap(m[key]); ok {
		m[key] = level
		return level
	}
	level := make(map[string]interface{})
	m[key] = level
	return level
}

// asMap normalizes the mapping types that show up after JSON decoding and
// state replay.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case core.State:
		return m, true
	case core.StreamSlice:
		return m, true
	default:
		return nil, false
	}
}

// less compares cursor values by the natural ordering of their type.
// ISO-8601 timestamps compare lexicographically; numbers numerically.
// Incomparable types fall back to their string forms.
func less(a, b interface{}) bool {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as < bs
		}
	}

	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}

	return fmt.Sprint(a) < fmt.Sprint(b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// drainErrors consumes a producer's error channel after its slices are
// exhausted and returns the first error, if any.
func drainErrors(errs <-chan error) error {
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
