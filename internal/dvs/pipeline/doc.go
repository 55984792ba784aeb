// Package pipeline wires the DVS render stages together.
//
// Stages, each on its own goroutine and linked by bounded channels:
//
//	ingest -> dispatch -> TransformPool (N workers) -> ReorderWriter -> Encoder
//
// The ingest stage owns the grid and colour-maps every snapshot inline.
// Back-pressure flows upstream through the channel capacities. Shutdown
// flows downstream by channel closure; any stage error cancels the shared
// context so that no stage is left blocked.
package pipeline
