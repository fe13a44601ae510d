package loop

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"icx.sh/interchange/internal/registry"
)

// registrationWire is the known shape of a registration message (spec
// §6). Any additional field the Manager sends survives separately, in
// RegistrationMeta.Extra, per spec §3's "arbitrary extra fields
// preserved verbatim".
type registrationWire struct {
	StartTime     time.Time         `mapstructure:"start_time"`
	ParslVersion  string            `mapstructure:"parsl_v"`
	PythonVersion string            `mapstructure:"python_v"`
	BlockID       string            `mapstructure:"block_id"`
	MaxCapacity   int               `mapstructure:"max_capacity"`
	WorkerCount   int               `mapstructure:"worker_count"`
	Hostname      string            `mapstructure:"hostname"`
	Packages      map[string]string `mapstructure:"packages"`
}

// decodeRegistration parses raw registration JSON into a
// registry.RegistrationMeta, routing every field registrationWire
// doesn't name into Extra. It goes through encoding/json to get a
// generic map first (mapstructure decodes Go values, not wire bytes),
// then mapstructure.Decoder with Metadata tracking to split known from
// unknown fields in one pass.
func decodeRegistration(raw []byte) (registry.RegistrationMeta, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return registry.RegistrationMeta{}, fmt.Errorf("loop: decoding registration: %w", err)
	}

	var wire registrationWire
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &wire,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return registry.RegistrationMeta{}, fmt.Errorf("loop: building registration decoder: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return registry.RegistrationMeta{}, fmt.Errorf("loop: decoding registration fields: %w", err)
	}

	var extra map[string]any
	if len(md.Unused) > 0 {
		extra = make(map[string]any, len(md.Unused))
		for _, k := range md.Unused {
			extra[k] = generic[k]
		}
	}

	return registry.RegistrationMeta{
		StartTime:     wire.StartTime,
		ParslVersion:  wire.ParslVersion,
		PythonVersion: wire.PythonVersion,
		BlockID:       wire.BlockID,
		MaxCapacity:   wire.MaxCapacity,
		WorkerCount:   wire.WorkerCount,
		Hostname:      wire.Hostname,
		Packages:      wire.Packages,
		Extra:         extra,
	}, nil
}
