// Package main hosts the librarian CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, projects it into the
// typed options each internal package expects, and drives scans, encode runs,
// analysis-cache maintenance and dependency checks. The heavy lifting lives in
// internal packages; commands here only wire them together and render output.
package main
