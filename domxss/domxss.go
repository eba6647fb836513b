// Package domxss configures the dom-xss taint query: untrusted text
// read out of the DOM (or via a DOM-manipulation library) that later
// flows into an HTML-construction sink.
//
// Reinterpreting DOM text as HTML is exploitable whenever an attacker
// influences the text, e.g. through a stored value or a previously
// sanitized fragment whose text content still carries markup.
package domxss

import (
	"regexp"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
)

// Name is the query name reported with findings.
const Name = "dom-xss"

// domTextProperties are DOM properties whose reads yield user-visible
// text, e.g. element.textContent.
var domTextProperties = taint.NewLabelSet(
	"textContent",
	"innerText",
	"value",
	"data",
)

// textCallees are DOM-manipulation library calls returning the text of
// a selection, e.g. jQuery's .text().
var textCallees = taint.NewLabelSet(
	"text",
	"val",
)

// unsafeAttributePattern matches attribute names whose values may carry
// attacker-influenced text. Attribute reads are sources only when the
// attribute name matches; reads of URL-ish attributes like "href" or
// "src" are excluded entirely.
var unsafeAttributePattern = regexp.MustCompile(`(?i)^(data-|aria-)|^(title|alt|placeholder|summary)$`)

// htmlSinkProperties are properties whose written value is parsed as
// HTML. By frontend convention these nodes are property-write targets.
var htmlSinkProperties = taint.NewLabelSet(
	"innerHTML",
	"outerHTML",
)

// htmlSinkCallees are calls whose argument is parsed as HTML.
var htmlSinkCallees = taint.NewLabelSet(
	"document.write",
	"document.writeln",
	"insertAdjacentHTML",
	"createContextualFragment",
	// jQuery and friends.
	"html",
	"append",
	"prepend",
	"before",
	"after",
	"replaceWith",
	"$",
	"jQuery",
)

// barrierCallees are calls whose result is clean regardless of input:
// HTML escaping, sanitization, and conversions that cannot produce a
// string of markup.
var barrierCallees = taint.NewLabelSet(
	"escapeHtml",
	"escapeHTML",
	"htmlEscape",
	"encodeHTML",
	"sanitize",
	"DOMPurify.sanitize",
	"encodeURIComponent",
	"encodeURI",
	"Number",
	"parseInt",
	"parseFloat",
	"Boolean",
)

// New returns the dom-xss query configuration. Guards are enabled, so
// typeof narrowing and node-shape witness conditions prune branches
// where a tested value is provably not text.
func New() taint.Config {
	return &taint.PredicateConfig{
		QueryName: Name,
		Source:    isSource,
		Sink:      isSink,
		Barrier:   isBarrier,
		Guard:     isGuard,
	}
}

func isSource(n *flowgraph.Node) bool {
	switch n.Kind {
	case flowgraph.KindPropertyAccess:
		if domTextProperties.Includes(n.Label) {
			return true
		}
		return unsafeAttributePattern.MatchString(n.Label)
	case flowgraph.KindCallResult:
		return textCallees.Includes(n.Label)
	default:
		return false
	}
}

func isSink(n *flowgraph.Node) bool {
	switch n.Kind {
	case flowgraph.KindPropertyAccess:
		return htmlSinkProperties.Includes(n.Label)
	case flowgraph.KindCallResult:
		return htmlSinkCallees.Includes(n.Label)
	default:
		return false
	}
}

func isBarrier(n *flowgraph.Node) bool {
	return n.Kind == flowgraph.KindCallResult && barrierCallees.Includes(n.Label)
}

func isGuard(n *flowgraph.Node) bool {
	return taint.IsComparison(n) || taint.IsShapeWitness(n)
}
