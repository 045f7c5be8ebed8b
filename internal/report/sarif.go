package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/embroider-build/embroider-sub001/internal/diag"
)

type sarifOutput struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

var sarifRules = []sarifRule{
	{ID: "EMB001", Name: "UnsupportedCustomization", ShortDescription: sarifMessage{Text: "Package customizes a tree no adapter converts"}, Properties: map[string]string{"kind": string(diag.Unsupported)}},
	{ID: "EMB002", Name: "NamespaceViolation", ShortDescription: sarifMessage{Text: "Customized tree writes outside the package namespace"}, Properties: map[string]string{"kind": string(diag.NamespaceViolation)}},
	{ID: "EMB003", Name: "DuplicateBuild", ShortDescription: sarifMessage{Text: "Package is built twice for the same consumer"}, Properties: map[string]string{"kind": string(diag.DuplicateBuild)}},
	{ID: "EMB004", Name: "UnknownImportCategory", ShortDescription: sarifMessage{Text: "Tracked import cannot be represented"}, Properties: map[string]string{"kind": string(diag.UnknownImport)}},
	{ID: "EMB005", Name: "SelfReference", ShortDescription: sarifMessage{Text: "Package imports itself by name"}, Properties: map[string]string{"kind": string(diag.SelfReference)}},
}

func ruleFor(k diag.Kind) (sarifRule, bool) {
	for _, r := range sarifRules {
		if r.Properties["kind"] == string(k) {
			return r, true
		}
	}
	return sarifRule{}, false
}

// WriteBuildSARIF renders the diagnostics of a build as SARIF 2.1.0,
// located at the root of the package they concern.
func WriteBuildSARIF(w io.Writer, r BuildReport, version string) error {
	roots := map[string]string{}
	for _, p := range r.Packages {
		roots[p.Name] = p.Root
	}

	results := []sarifResult{}
	for _, d := range r.Diagnostics {
		rule, ok := ruleFor(d.Kind)
		if !ok {
			continue
		}
		level := "warning"
		if d.Kind == diag.NamespaceViolation || d.Kind == diag.DuplicateBuild {
			level = "error"
		}
		res := sarifResult{
			RuleID:  rule.ID,
			Level:   level,
			Message: sarifMessage{Text: fmt.Sprintf("%s: %s", d.Package, d.Message)},
		}
		if root, ok := roots[d.Package]; ok {
			res.Locations = []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: "file://" + filepath.ToSlash(filepath.Join(root, "package.json"))},
				},
			}}
		}
		results = append(results, res)
	}

	out := sarifOutput{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "embroider",
						Version:        version,
						InformationURI: "https://github.com/embroider-build/embroider",
						Rules:          sarifRules,
					},
				},
				Results: results,
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
