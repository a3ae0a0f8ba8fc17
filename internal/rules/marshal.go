package rules

import "encoding/json"

// mergeExtraJSON marshals known and merges in any additional top-level keys
// carried in extra, letting Employee write fields it does not itself model
// without the engine ever introspecting them. Keys already present in known
// take precedence over the same key in extra.
func mergeExtraJSON(extra map[string]any, known any) ([]byte, error) {
	base, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := merged[k]; exists {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}
