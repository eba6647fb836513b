// Package sqlinjection configures the sql-injection taint query for
// flow graphs built from Go programs: HTTP request data that reaches
// a SQL query method without going through a parameterized query.
package sqlinjection

import (
	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
)

// Name is the query name reported with findings.
const Name = "sql-injection"

// userControlledTypes are parameter types carrying user controlled
// values that can end up in a SQL query.
var userControlledTypes = taint.NewLabelSet(
	"*net/http.Request",
	"net/http.Request",
	"net/url.Values",
	"net/http.Header",
)

// injectableSQLCallees are query methods that interpret a string
// argument as SQL.
var injectableSQLCallees = taint.NewLabelSet(
	"(*database/sql.DB).Query",
	"(*database/sql.DB).QueryContext",
	"(*database/sql.DB).QueryRow",
	"(*database/sql.DB).QueryRowContext",
	"(*database/sql.DB).Exec",
	"(*database/sql.DB).ExecContext",
	"(*database/sql.Tx).Query",
	"(*database/sql.Tx).QueryContext",
	"(*database/sql.Tx).QueryRow",
	"(*database/sql.Tx).QueryRowContext",
	"(*database/sql.Tx).Exec",
	"(*database/sql.Tx).ExecContext",
	// GORM
	// https://gorm.io/docs/security.html
	"(*github.com/jinzhu/gorm.DB).Where",
	"(*github.com/jinzhu/gorm.DB).Or",
	"(*github.com/jinzhu/gorm.DB).Not",
	"(*github.com/jinzhu/gorm.DB).Group",
	"(*github.com/jinzhu/gorm.DB).Having",
	"(*github.com/jinzhu/gorm.DB).Joins",
	"(*github.com/jinzhu/gorm.DB).Select",
	"(*github.com/jinzhu/gorm.DB).Distinct",
	"(*github.com/jinzhu/gorm.DB).Pluck",
	"(*github.com/jinzhu/gorm.DB).Raw",
	"(*github.com/jinzhu/gorm.DB).Exec",
	"(*github.com/jinzhu/gorm.DB).Order",
	"(*gorm.io/gorm.DB).Where",
	"(*gorm.io/gorm.DB).Raw",
	"(*gorm.io/gorm.DB).Exec",
	"(*gorm.io/gorm.DB).Order",
)

// New returns the sql-injection query configuration. Graphs built
// from Go SSA carry no branch conditions, so the query defines no
// guards.
func New() taint.Config {
	return &taint.PredicateConfig{
		QueryName: Name,
		Source:    isSource,
		Sink:      isSink,
	}
}

func isSource(n *flowgraph.Node) bool {
	return n.Kind == flowgraph.KindParameter && userControlledTypes.Includes(n.Label)
}

func isSink(n *flowgraph.Node) bool {
	return n.Kind == flowgraph.KindCallResult && injectableSQLCallees.Includes(n.Label)
}
