// Package server implements the MCP (Model Context Protocol) server for the
// fitting toolkit.
//
// This package provides a JSON-RPC 2.0 server that exposes detection,
// rendering, similarity, and optimization capabilities through the MCP
// protocol, so MCP-compatible clients can drive photo-to-vector fitting
// sessions interactively.
//
// # Protocol
//
// Transport is line-delimited JSON-RPC 2.0 over stdio: requests arrive on
// stdin, one JSON object per line, and responses leave on stdout. All
// logging goes to stderr; stdout carries protocol frames only.
//
// Methods:
//   - initialize: protocol handshake and server identity
//   - tools/list: tool catalog with JSON schemas
//   - tools/call: invoke one tool with JSON arguments
//   - ping: liveness check
//
// # Available Tools
//
// Analysis and fitting:
//   - similarity_compare: Score two images against each other
//   - detect_features: Run the feature detector over a photo
//   - render_scene: Render a scene description to PNG and/or SVG
//   - optimize_run: Full detect-render-compare-adjust fitting run
//
// Calibration (one marker set per server process):
//   - calibration_click_original: Record a click on the reference photo
//   - calibration_click_rendered: Record a click on the rendered image
//   - calibration_list: List marker pairs and the derived offset report
//   - calibration_clear: Drop all marker pairs
//
// Run archive:
//   - runs_list: Summaries of archived fitting runs, newest first
//   - runs_get: Full archived result by run ID
//
// Introspection:
//   - server_info: Version, backends, and session state
//
// # Session State
//
// The server keeps an in-memory image cache keyed by path, so reference
// photos are decoded once per process. Rendered frames saved through
// render_scene are cached under their output path, letting a follow-up
// similarity_compare or calibration click observe the exact rendered pixels.
// The calibration set and the archive handle likewise live for the process
// lifetime.
//
// # Error Handling
//
// A failing tool produces a JSON-RPC error response carrying:
//   - code: -32000 for tool failures, or the standard JSON-RPC codes
//     (-32700 parse, -32600 invalid request, -32601 unknown method,
//     -32602 invalid params)
//   - message: what went wrong, human-readable
//   - data: the underlying Go error string when one exists
//
// # Usage
//
// The server is typically started by an MCP client via the serve command:
//
//	srv := server.New(cfg, server.WithArchive(store))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
