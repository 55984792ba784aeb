// Package l1events owns Layer 1 (Events) of the DVS render model.
//
// Responsibilities: reading recorded event-camera logs, mapping header
// columns to event fields, and mirroring raw sensor coordinates into the
// image frame. This layer produces Event values consumed by L2 (Frames).
//
// Dependency rule: L1 has no inward dependencies on higher layers.
package l1events
