// Package mcp contains the wire-level types and method identifiers of the
// Model Context Protocol as used by the adapter: the initialize handshake,
// the tool/resource/prompt descriptor shapes, and content blocks.
//
// Schemas are carried as plain JSON Schema maps because they originate from
// host-registered abilities rather than from Go type reflection; see the
// abilities package for the reflection helper used when schemas are authored
// in Go.
package mcp
