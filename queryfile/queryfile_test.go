package queryfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
	"github.com/taintflow/taint/queryfile"
)

const sqlQuery = `
name: sql-injection
sources:
  - kind: parameter
    label: '\*net/http\.Request'
sinks:
  - kind: call-result
    label: 'database/sql.*\.Query'
barriers:
  - kind: call-result
    label: 'Sanitize'
guards: true
`

func TestLoad(t *testing.T) {
	q, err := queryfile.Load(strings.NewReader(sqlQuery))
	require.NoError(t, err)

	assert.Equal(t, "sql-injection", q.Name())
	assert.Len(t, q.Sources, 1)
	assert.Len(t, q.Sinks, 1)
	assert.Len(t, q.Barriers, 1)
	assert.True(t, q.Guards)
}

func TestQueryPredicates(t *testing.T) {
	q, err := queryfile.Load(strings.NewReader(sqlQuery))
	require.NoError(t, err)

	param := &flowgraph.Node{Kind: flowgraph.KindParameter, Label: "*net/http.Request"}
	call := &flowgraph.Node{Kind: flowgraph.KindCallResult, Label: "(*database/sql.DB).Query"}
	clean := &flowgraph.Node{Kind: flowgraph.KindCallResult, Label: "example.com/db.Sanitize"}

	assert.True(t, q.IsSource(param))
	assert.False(t, q.IsSource(&flowgraph.Node{Kind: flowgraph.KindCallResult, Label: "*net/http.Request"}), "kind must match")
	assert.True(t, q.IsSink(call))
	assert.False(t, q.IsSink(param))
	assert.True(t, q.IsBarrier(clean))

	cond := &flowgraph.Node{Kind: flowgraph.KindExpression, Label: "==="}
	assert.True(t, q.IsGuard(cond))
}

func TestGuardsDisabledByDefault(t *testing.T) {
	q, err := queryfile.Load(strings.NewReader(`
name: minimal
sources:
  - label: 'in'
sinks:
  - label: 'out'
`))
	require.NoError(t, err)

	cond := &flowgraph.Node{Kind: flowgraph.KindExpression, Label: "==="}
	assert.False(t, q.IsGuard(cond))
}

func TestPatternAnyKind(t *testing.T) {
	q, err := queryfile.Load(strings.NewReader(`
name: any-kind
sources:
  - label: '^secret$'
sinks:
  - label: '^log$'
`))
	require.NoError(t, err)

	for _, kind := range []flowgraph.NodeKind{
		flowgraph.KindExpression,
		flowgraph.KindParameter,
		flowgraph.KindCallResult,
	} {
		assert.True(t, q.IsSource(&flowgraph.Node{Kind: kind, Label: "secret"}))
	}
	assert.False(t, q.IsSource(&flowgraph.Node{Kind: flowgraph.KindExpression, Label: "secrets"}))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "not yaml",
			input:   "{{{",
			wantErr: "failed to decode",
		},
		{
			name:    "missing name",
			input:   "sources: [{label: a}]\nsinks: [{label: b}]",
			wantErr: "no name",
		},
		{
			name:    "missing sources",
			input:   "name: q\nsinks: [{label: b}]",
			wantErr: "no sources",
		},
		{
			name:    "missing sinks",
			input:   "name: q\nsources: [{label: a}]",
			wantErr: "no sinks",
		},
		{
			name:    "bad kind",
			input:   "name: q\nsources: [{kind: statement, label: a}]\nsinks: [{label: b}]",
			wantErr: "unknown node kind",
		},
		{
			name:    "bad label regexp",
			input:   "name: q\nsources: [{label: '('}]\nsinks: [{label: b}]",
			wantErr: "invalid label pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := queryfile.Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sqlQuery), 0o644))

	q, err := queryfile.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sql-injection", q.Name())

	_, err = queryfile.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadedQueryDrivesCheck(t *testing.T) {
	q, err := queryfile.Load(strings.NewReader(sqlQuery))
	require.NoError(t, err)

	g := flowgraph.New()
	req := g.AddNode(flowgraph.KindParameter, "*net/http.Request", flowgraph.Position{})
	query := g.AddNode(flowgraph.KindExpression, "query", flowgraph.Position{})
	sink := g.AddNode(flowgraph.KindCallResult, "(*database/sql.DB).Query", flowgraph.Position{})
	g.AddEdge(req, query, flowgraph.EdgeAssign)
	g.AddEdge(query, sink, flowgraph.EdgeCallArg)

	report, err := taint.Check(g, q)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, req.ID, report.Findings[0].Source.ID)
	assert.Equal(t, sink.ID, report.Findings[0].Sink.ID)
}
