// Package catalog defines the fastener type registry: the static mapping
// from a standard designation (ISO 4017, DIN 985, ASTM A325, ...) to its
// category, capability flags, ordered diameter list and per-diameter
// length list. The registry is built once from embedded tables and is
// read-only afterwards, so it is safe for unsynchronized concurrent reads.
package catalog
