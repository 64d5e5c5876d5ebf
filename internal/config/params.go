package config

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MaxParamLength is the longest parameter value recorded verbatim.
const MaxParamLength = 500

// TooLong replaces parameter values longer than MaxParamLength.
const TooLong = "TOO_LONG!"

// Flatten returns the configuration as dotted keys, e.g.
// "experiment.step_size" -> "10". List elements are indexed: "experiment.seeds.0".
func (c *Config) Flatten() (map[string]string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	out := make(map[string]string)
	for k, v := range tree {
		flatten(k, v, out)
	}
	return out, nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(prefix+"."+k, child, out)
		}
	case []any:
		for i, child := range v {
			flatten(prefix+"."+strconv.Itoa(i), child, out)
		}
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

// Params returns Flatten with overlong values replaced by TooLong.
func (c *Config) Params(logger *zap.Logger) (map[string]string, error) {
	params, err := c.Flatten()
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		if len(v) > MaxParamLength {
			if logger != nil {
				logger.Warn("parameter too long to record", zap.String("param", k), zap.Int("length", len(v)))
			}
			params[k] = TooLong
		}
	}
	return params, nil
}
