// Package l2frames owns Layer 2 (Frames) of the DVS render model.
//
// Responsibilities: the per-pixel last-activation grid and the emission
// policy that decides when the grid is snapshotted into a frame.
// Key types: Grid, Emitter, Boundary.
//
// Dependency rule: L2 may depend on L1, but never on L3+. The grid is owned
// by a single goroutine; nothing in this package is safe for concurrent use.
package l2frames
