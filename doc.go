// Package taint enables "taint checking", a static analysis technique
// for identifying attacker-controlled "sources" whose values flow into
// dangerous contexts, "sinks".
//
// The engine is generic: it operates over an abstract flow graph
// supplied by a program-representation layer (see the flowgraph and
// ssaflow packages), parameterized by a Config of source, sink,
// barrier, and guard predicates that together define one vulnerability
// query. A classic example is the dom-xss query (see the domxss
// package), where text read out of the DOM finds its way into an
// HTML-construction sink without being escaped.
package taint
