package export

import (
	"boardsync/internal/shape"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// YAML writes the shapes as a YAML sequence using the same field names as
// the wire form.
func YAML(w io.Writer, shapes []shape.Shape) error {
	docs := make([]map[string]any, 0, len(shapes))
	for _, s := range shapes {
		raw, err := json.Marshal(s)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return err
	}
	return enc.Close()
}
