// Package sarif renders taint reports as SARIF 2.1.0 logs, the
// interchange format most code-scanning consumers ingest.
//
// Only the subset of the standard needed for taint findings is
// modeled. Pointers are used for optional fields; required fields use
// value types.
package sarif

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	version = "2.1.0"
	schema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
)

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

type Run struct {
	Tool              *Tool              `json:"tool"`
	AutomationDetails *AutomationDetails `json:"automationDetails,omitempty"`
	Results           []*Result          `json:"results"`
}

type AutomationDetails struct {
	GUID string `json:"guid,omitempty"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

type ToolComponent struct {
	Name           string  `json:"name"`
	Version        *string `json:"version,omitempty"`
	InformationURI *string `json:"informationUri,omitempty"`
}

type Result struct {
	RuleID    string      `json:"ruleId"`
	Message   *Message    `json:"message"`
	Level     Level       `json:"level,omitempty"`
	Locations []*Location `json:"locations,omitempty"`
}

type Location struct {
	PhysicalLocation *PhysicalLocation `json:"physicalLocation,omitempty"`
	Message          *Message          `json:"message,omitempty"`
}

type PhysicalLocation struct {
	ArtifactLocation *ArtifactLocation `json:"artifactLocation,omitempty"`
	Region           *Region           `json:"region,omitempty"`
}

type ArtifactLocation struct {
	URI *string `json:"uri,omitempty"`
}

type Region struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

// ToolName is the driver name recorded in emitted logs.
const ToolName = "taintflow"

// FromReport converts a taint report into a single-run SARIF log. The
// query name becomes the rule id; the sink's position becomes the
// result location, with the source as a secondary location.
func FromReport(g *flowgraph.Graph, queryName string, report *taint.Report) *Log {
	run := &Run{
		Tool: &Tool{
			Driver: &ToolComponent{
				Name: ToolName,
			},
		},
		AutomationDetails: &AutomationDetails{
			GUID: uuid.NewString(),
		},
		Results: make([]*Result, 0, len(report.Findings)),
	}

	for _, f := range report.Findings {
		text := fmt.Sprintf("tainted data from %s reaches %s", f.Source, f.Sink)
		result := &Result{
			RuleID:  queryName,
			Level:   LevelError,
			Message: &Message{Text: &text},
			Locations: []*Location{
				location(f.Sink, "sink"),
				location(f.Source, "source"),
			},
		}
		run.Results = append(run.Results, result)
	}

	return &Log{
		Version: version,
		Schema:  schema,
		Runs:    []*Run{run},
	}
}

func location(n *flowgraph.Node, role string) *Location {
	msg := role
	if n.Label != "" {
		msg = fmt.Sprintf("%s: %s", role, n.Label)
	}
	loc := &Location{
		Message: &Message{Text: &msg},
	}
	if n.Pos.File != "" {
		uri := n.Pos.File
		loc.PhysicalLocation = &PhysicalLocation{
			ArtifactLocation: &ArtifactLocation{URI: &uri},
			Region: &Region{
				StartLine:   n.Pos.Line,
				StartColumn: n.Pos.Col,
			},
		}
	}
	return loc
}

// Write encodes the log as indented JSON.
func Write(w io.Writer, log *Log) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("failed to encode sarif log: %w", err)
	}
	return nil
}
