// Package trace records begin/end spans of driver work so a slow or stuck run
// can be inspected after the fact.
//
// A Tracer is attached to the command context with WithTracer and picked up
// by the driver through FromContext. When nothing is attached, FromContext
// returns Nop and every call is a no-op.
//
// Levels:
//
//	off    nothing is recorded
//	phase  driver operations and their phases (collect, normalize, decode, encode)
//	file   additionally one span per processed file
//
// Output is either human-readable text or NDJSON (one event per line).
package trace
