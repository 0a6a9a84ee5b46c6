package store

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Patch is a partial state keyed by field name. Keys match struct fields by
// their mapstructure tag or, case-insensitively, by name.
type Patch map[string]any

// ApplyTo decodes the patch over target, leaving fields absent from the patch
// untouched. Unknown keys are an error.
func (p Patch) ApplyTo(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(p))
}

// PatchOf converts a struct (or map) into a Patch holding every field.
func PatchOf(v any) (Patch, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(v, &out); err != nil {
		return nil, fmt.Errorf("failed to convert to patch: %w", err)
	}
	return Patch(out), nil
}
