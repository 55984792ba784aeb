// Package l3color owns Layer 3 (Color) of the DVS render model.
//
// Responsibilities: the decay lookup table, the hue gradient, and mapping a
// grid snapshot at a frame boundary into a recency heatmap image.
// Key types: DecayCurve, HueGradient, ColorMapper, ColorFrame.
//
// Dependency rule: L3 may depend on L1-L2, but never on the pipeline.
// DecayCurve and HueGradient are immutable after construction and may be
// shared across goroutines without locking.
package l3color
