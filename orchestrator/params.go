package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/spf13/cast"
)

// ResponseFormat is spec §6's responseFormat enum. It is the knob §4.10
// makes load-bearing: Text skips constraint wiring entirely, JSONSchema
// wires up the full processor/trie/supervisor stack.
type ResponseFormat int

const (
	ResponseFormatText ResponseFormat = iota
	ResponseFormatJSONSchema
)

// DefaultMaxRetries, DefaultTempBumpFactor and MaxTemperature are spec
// §4.8's retry policy defaults: up to two additional attempts, a 20%
// temperature bump per attempt, bounded at 1.5.
const (
	DefaultMaxRetries     = 2
	DefaultTempBumpFactor = 1.2
	MaxTemperature        = 1.5
)

// DecodeParams is spec §6's request parameters struct. Struct tags follow
// the teacher's xcache.Config style so a caller can decode a request body
// straight into it, and ParamsFromMap offers the same permissive map[string]any
// coercion the teacher's httpclient layer relies on cast for.
type DecodeParams struct {
	Prompt      string          `json:"prompt"`
	MaxTokens   int             `json:"maxTokens"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"topP"`
	TopK        *int            `json:"topK,omitempty"`
	Seed        *int64          `json:"seed,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`

	ResponseFormat ResponseFormat `json:"responseFormat"`

	// IncludeWhitespace and SoftBias configure the mask-hint generator
	// (spec §4.4); zero SoftBias means "use the generator's own default".
	IncludeWhitespace bool    `json:"includeWhitespace,omitempty"`
	SoftBias          float32 `json:"softBias,omitempty"`

	// BufferCap overrides the supervisor's default cumulative buffer cap
	// (spec §4.7); zero means "use supervisor.DefaultBufferCap".
	BufferCap int `json:"bufferCap,omitempty"`

	// MaxRetries, TempBumpFactor and RetryDelay configure the orchestrator's
	// post-generation validation retry loop (spec §4.8).
	MaxRetries     int           `json:"maxRetries,omitempty"`
	TempBumpFactor float64       `json:"tempBumpFactor,omitempty"`
	RetryDelay     time.Duration `json:"retryDelay,omitempty"`
}

// DefaultParams returns a DecodeParams with the spec's documented defaults
// filled in; callers typically start here and override fields.
func DefaultParams() DecodeParams {
	return DecodeParams{
		Temperature:    1.0,
		TopP:           1.0,
		ResponseFormat: ResponseFormatText,
		MaxRetries:     DefaultMaxRetries,
		TempBumpFactor: DefaultTempBumpFactor,
	}
}

// ParamsFromMap decodes a permissive map[string]any (e.g. a parsed JSON
// request body) into DecodeParams using github.com/spf13/cast, mirroring
// the teacher's habit of accepting loosely-typed request maps rather than
// requiring callers to pre-build a typed struct.
func ParamsFromMap(m map[string]any) (DecodeParams, error) {
	p := DefaultParams()

	if v, ok := m["prompt"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return p, err
		}

		p.Prompt = s
	}

	if v, ok := m["maxTokens"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return p, err
		}

		p.MaxTokens = n
	}

	if v, ok := m["temperature"]; ok {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return p, err
		}

		p.Temperature = f
	}

	if v, ok := m["topP"]; ok {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return p, err
		}

		p.TopP = f
	}

	if v, ok := m["topK"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return p, err
		}

		p.TopK = &n
	}

	if v, ok := m["seed"]; ok {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return p, err
		}

		p.Seed = &n
	}

	if v, ok := m["stop"]; ok {
		ss, err := cast.ToStringSliceE(v)
		if err != nil {
			return p, err
		}

		p.Stop = ss
	}

	if v, ok := m["responseFormat"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return p, err
		}

		if s == "jsonSchema" || s == "json_schema" {
			p.ResponseFormat = ResponseFormatJSONSchema
		}
	}

	if v, ok := m["schema"]; ok {
		raw, err := json.Marshal(v)
		if err != nil {
			return p, err
		}

		p.Schema = raw
		p.ResponseFormat = ResponseFormatJSONSchema
	}

	if v, ok := m["maxRetries"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return p, err
		}

		p.MaxRetries = n
	}

	return p, nil
}

// clampTemperature applies spec §4.8's retry-bump ceiling.
func clampTemperature(t float64) float64 {
	if t > MaxTemperature {
		return MaxTemperature
	}

	return t
}
