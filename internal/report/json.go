package report

import (
	"encoding/json"
	"io"
)

func WriteBuildJSON(w io.Writer, r BuildReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func WriteExternalsJSON(w io.Writer, name string, externals []string) error {
	if externals == nil {
		externals = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Name      string   `json:"name"`
		Externals []string `json:"externals"`
	}{name, externals})
}
