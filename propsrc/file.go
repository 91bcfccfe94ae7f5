package propsrc

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileSource loads a TOML file into a flat dotted-key map, one property
// per leaf value: a "[extract] follow_file = ..." table entry becomes
// the key "extract.follow_file". Grounded on Harvx's
// internal/config/loader.go and resolver.go's extractProfileFlat, which
// decode into a raw map[string]interface{} before turning the result
// into koanf-compatible keys; unlike Harvx's fixed Profile schema this
// flattening is fully generic, since ".transform.<name>_file" keys name
// whatever transformers the pipeline is configured with and cannot be
// enumerated as struct fields ahead of time. A missing file is not an
// error: the caller falls back to defaults and other layers.
type FileSource struct {
	Path string
}

func (f FileSource) Load() (map[string]any, error) {
	if _, err := os.Stat(f.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", f.Path, err)
	}

	var raw map[string]interface{}
	if _, err := toml.DecodeFile(f.Path, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", f.Path, err)
	}

	flat := make(map[string]any)
	flatten("", raw, flat)
	return flat, nil
}

// flatten walks a raw TOML-decoded map recursively, writing one entry
// per leaf value into out under its dotted path. String-slice leaves
// (e.g. "transform.pipe_line") are preserved as []string rather than
// being flattened further.
func flatten(prefix string, raw map[string]interface{}, out map[string]any) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case []interface{}:
			out[key] = toStringSlice(val)
		default:
			out[key] = v
		}
	}
}

func toStringSlice(v []interface{}) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
