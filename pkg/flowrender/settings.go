// Package flowrender draws the flow simulation with ebiten. The pipeline
// owns the render loop: a basemap is rasterized once per dataset, route
// geometry is rebuilt only when the node set, aggregation granularity or
// density changes, and per-frame particle motion is computed entirely in a
// Kage shader from a handful of scalar uniforms. No per-particle state is
// ever read back.
package flowrender

import "github.com/sudorandom/flow-stream/pkg/flowsim"

// TrafficFilter selects which flow classes are visible.
type TrafficFilter uint8

const (
	FilterAll TrafficFilter = iota
	FilterGeneral
	FilterSpecial
)

// AggregationMode sets route endpoint granularity.
type AggregationMode uint8

const (
	// AggregateByNode keeps one route per node pair.
	AggregateByNode AggregationMode = iota
	// AggregateByRegion snaps endpoints to a coarse grid and merges
	// everything inside a cell, for dense datasets.
	AggregateByRegion
)

// Settings is the externally supplied knob bundle. Opacity, Speed and
// Filter changes are uniform-only; Density and Aggregation changes trigger
// a geometry pass.
type Settings struct {
	Density      float64 // fraction of ranked routes drawn, (0,1]
	Opacity      float64
	Speed        float64 // global speed multiplier
	Filter       TrafficFilter
	Aggregation  AggregationMode
	OffsetFactor float64 // perpendicular spread of parallel route lines
}

// DefaultSettings returns a usable middle-of-the-road bundle.
func DefaultSettings() Settings {
	return Settings{
		Density:      1,
		Opacity:      0.8,
		Speed:        1,
		Filter:       FilterAll,
		Aggregation:  AggregateByNode,
		OffsetFactor: 1,
	}
}

// Msg is the closed set of messages a running pipeline accepts. Delivery
// is asynchronous; the pipeline drains its mailbox at the top of every
// Update tick.
type Msg interface {
	pipelineMsg()
}

// NodesMsg replaces the node dataset wholesale.
type NodesMsg struct {
	Nodes []flowsim.Node
}

// RoutesMsg replaces the aggregated route set the geometry is built from.
type RoutesMsg struct {
	Routes []RouteSpec
}

// ViewportMsg pans/zooms the composited view. Cheap: applied as a draw
// transform, no geometry rebuild.
type ViewportMsg struct {
	CenterX, CenterY float64 // in destination pixels of the internal surface
	Zoom             float64
}

// ResizeMsg changes the internal surface size.
type ResizeMsg struct {
	Width, Height int
}

// SettingsMsg applies a new settings bundle.
type SettingsMsg struct {
	Settings Settings
}

func (NodesMsg) pipelineMsg()    {}
func (RoutesMsg) pipelineMsg()   {}
func (ViewportMsg) pipelineMsg() {}
func (ResizeMsg) pipelineMsg()   {}
func (SettingsMsg) pipelineMsg() {}
