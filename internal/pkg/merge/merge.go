// Package merge rebuilds a full printer status from the partial reports the
// printer publishes.
package merge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/anicoll/souzu/internal/pkg/model"
)

// Patch is a decoded wire message body: only the fields that changed are
// present, and nested objects may themselves be partial.
type Patch map[string]any

const lightsReportKey = "lights_report"

// lightNodeKey identifies a light channel inside lights_report.
const lightNodeKey = "node"

// roundedFields are rounded to the nearest integer before merging to hide
// sensor jitter. Targets are whole degrees but some firmware sends them as
// fractions.
var roundedFields = []string{"bed_temper", "nozzle_temper", "bed_target_temper", "nozzle_target_temper"}

// ErrInvalidUTF8 is returned by ParsePatch for payloads that are not UTF-8.
var ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")

// ParsePatch decodes the inner "print" object of a wire payload. A payload
// without a "print" object is an empty patch.
func ParsePatch(payload []byte) (Patch, error) {
	// encoding/json would silently replace invalid bytes with U+FFFD
	if !utf8.Valid(payload) {
		return nil, ErrInvalidUTF8
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	raw, ok := envelope["print"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Patch{}, nil
	}
	patch := Patch{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("decoding print report: %w", err)
	}
	return patch, nil
}

// IsFull reports whether the patch is a complete status push rather than a
// delta. The printer marks full pushes with "msg": 0.
func (p Patch) IsFull() bool {
	msg, ok := p["msg"].(float64)
	return ok && msg == 0
}

// Merge applies patch on top of base and returns the new snapshot. base is
// not modified. A nil base is treated as an empty snapshot.
//
// Scalars in the patch replace the base value. Objects are merged field by
// field. A non-empty list replaces the base list and an empty list leaves
// it alone. lights_report is merged by node so channels the printer did not
// resend are kept.
func Merge(base *model.StatusReport, patch Patch) (*model.StatusReport, error) {
	baseTree := map[string]any{}
	if base != nil {
		data, err := json.Marshal(base)
		if err != nil {
			return nil, fmt.Errorf("encoding base report: %w", err)
		}
		if err := json.Unmarshal(data, &baseTree); err != nil {
			return nil, fmt.Errorf("decoding base report: %w", err)
		}
	}

	merged := mergeTree(baseTree, roundTemperatures(patch))

	out, err := decode(merged)
	if err != nil {
		return nil, err
	}
	// Lists that decoded empty are dropped on the next encode; settle them
	// now so merging an empty patch is a no-op.
	return decode(out)
}

func decode(v any) (*model.StatusReport, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding merged report: %w", err)
	}
	out := &model.StatusReport{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decoding merged report: %w", err)
	}
	return out, nil
}

func roundTemperatures(patch Patch) map[string]any {
	out := make(map[string]any, len(patch))
	for k, v := range patch {
		out[k] = v
	}
	for _, field := range roundedFields {
		if v, ok := out[field].(float64); ok {
			out[field] = roundHalfUp(v)
		}
	}
	return out
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func mergeTree(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		bv := out[k]
		switch pv := pv.(type) {
		case map[string]any:
			bm, ok := bv.(map[string]any)
			if !ok {
				bm = map[string]any{}
			}
			out[k] = mergeTree(bm, pv)
		case []any:
			if len(pv) == 0 {
				// an empty list means no change, never "clear"
				continue
			}
			bl, ok := bv.([]any)
			if ok && k == lightsReportKey {
				out[k] = mergeKeyed(bl, pv, lightNodeKey)
				continue
			}
			out[k] = pv
		default:
			out[k] = pv
		}
	}
	return out
}

// mergeKeyed overwrites base items that share key with an incoming item and
// appends items with new keys. Untouched items keep their order.
func mergeKeyed(base, patch []any, key string) []any {
	out := make([]any, len(base), len(base)+len(patch))
	copy(out, base)
	for _, item := range patch {
		im, ok := item.(map[string]any)
		if !ok {
			continue
		}
		_, idx, found := lo.FindIndexOf(out, func(existing any) bool {
			em, ok := existing.(map[string]any)
			return ok && em[key] == im[key]
		})
		if found {
			out[idx] = item
			continue
		}
		out = append(out, item)
	}
	return out
}
