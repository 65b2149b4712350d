// Package calibration models the human-supplied correspondence points between
// a reference photo and a rendered candidate, and the positional offsets
// derived from them.
//
// The interactive surface (CLI, server tool, or an external UI) records
// clicks; this package owns the pairing lifecycle and hands the fitting loop
// an immutable snapshot so a run never observes markers added mid-flight.
// Coordinates are logical image units; any on-screen transform is the
// caller's responsibility.
package calibration

import (
	"fmt"
	"math"
	"sync"
)

// Point is a coordinate in logical image space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Original is a clicked point in the reference image, optionally tagged with
// the color sampled at the click site ("#RRGGBB").
type Original struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Color string  `json:"color,omitempty" yaml:"color,omitempty"`
}

// Offset is the component-wise displacement rendered minus original.
type Offset struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Magnitude returns the Euclidean length of the offset.
func (o Offset) Magnitude() float64 {
	return math.Hypot(o.DX, o.DY)
}

// MarkerPair is one correspondence between the two spaces. A pair is complete
// only when both sides are present; offsets are defined for complete pairs
// only.
type MarkerPair struct {
	ID       int       `json:"id" yaml:"id"`
	Original *Original `json:"original,omitempty" yaml:"original,omitempty"`
	Rendered *Point    `json:"rendered,omitempty" yaml:"rendered,omitempty"`
}

// Complete reports whether both sides of the pair have been clicked.
func (p *MarkerPair) Complete() bool {
	return p.Original != nil && p.Rendered != nil
}

// Offset returns rendered minus original. The second return is false for
// incomplete pairs.
func (p *MarkerPair) Offset() (Offset, bool) {
	if !p.Complete() {
		return Offset{}, false
	}
	return Offset{DX: p.Rendered.X - p.Original.X, DY: p.Rendered.Y - p.Original.Y}, true
}

func (p *MarkerPair) clone() MarkerPair {
	out := MarkerPair{ID: p.ID}
	if p.Original != nil {
		o := *p.Original
		out.Original = &o
	}
	if p.Rendered != nil {
		r := *p.Rendered
		out.Rendered = &r
	}
	return out
}

// Set holds the live marker pairs for one calibration session. It is safe for
// concurrent use; the fitting loop reads it only through Snapshot.
type Set struct {
	mu     sync.Mutex
	pairs  []*MarkerPair
	nextID int
}

// NewSet returns an empty calibration set. IDs start at 1 and follow creation
// order.
func NewSet() *Set {
	return &Set{nextID: 1}
}

// ClickOriginal records a click in the reference image. It completes the
// earliest pair still missing an original side; when no such pair exists it
// opens a new pair awaiting a rendered click. The updated pair is returned by
// value.
func (s *Set) ClickOriginal(x, y float64, color string) MarkerPair {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pairs {
		if p.Original == nil {
			p.Original = &Original{X: x, Y: y, Color: color}
			return p.clone()
		}
	}
	p := &MarkerPair{ID: s.nextID, Original: &Original{X: x, Y: y, Color: color}}
	s.nextID++
	s.pairs = append(s.pairs, p)
	return p.clone()
}

// ClickRendered records a click in the rendered image. It binds to the
// earliest pair that has an original but no rendered side; when no such pair
// exists it opens a new rendered-only pair awaiting a future original click.
func (s *Set) ClickRendered(x, y float64) MarkerPair {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pairs {
		if p.Original != nil && p.Rendered == nil {
			p.Rendered = &Point{X: x, Y: y}
			return p.clone()
		}
	}
	p := &MarkerPair{ID: s.nextID, Rendered: &Point{X: x, Y: y}}
	s.nextID++
	s.pairs = append(s.pairs, p)
	return p.clone()
}

// Clear wipes every pair. Toggling calibration mode off maps to this call.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = nil
	s.nextID = 1
}

// Pairs returns copies of all pairs, complete or not, in creation order.
func (s *Set) Pairs() []MarkerPair {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]MarkerPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p.clone())
	}
	return out
}

// Snapshot captures the complete pairs as an immutable view for one fitting
// run. Later clicks or clears never alter an existing snapshot.
func (s *Set) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{}
	for _, p := range s.pairs {
		off, ok := p.Offset()
		if !ok {
			continue
		}
		snap.Markers = append(snap.Markers, Marker{
			ID:       p.ID,
			Original: Point{X: p.Original.X, Y: p.Original.Y},
			Rendered: *p.Rendered,
			Offset:   off,
			Color:    p.Original.Color,
		})
	}
	return snap
}

// Marker is one complete pair flattened into the tuple the adjustment rules
// consume.
type Marker struct {
	ID       int    `json:"id"`
	Original Point  `json:"original"`
	Rendered Point  `json:"rendered"`
	Offset   Offset `json:"offset"`
	Color    string `json:"color,omitempty"`
}

// Snapshot is the immutable calibration view handed to a fitting run. Markers
// appear in pair creation order.
type Snapshot struct {
	Markers []Marker `json:"markers"`
}

// Empty reports whether the snapshot carries no complete pairs.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Markers) == 0
}

// OutlierPolicy controls how offsets beyond a magnitude threshold contribute
// to the mean. Flagged markers are always reported; whether they are excluded
// from the mean is the caller's choice.
type OutlierPolicy struct {
	// Threshold is the offset magnitude above which a marker is flagged.
	Threshold float64 `json:"threshold"`

	// Exclude drops flagged markers from the mean instead of merely
	// reporting them.
	Exclude bool `json:"exclude"`
}

// DefaultOutlierThreshold is the offset magnitude, in logical units, above
// which a marker pair is considered suspect.
const DefaultOutlierThreshold = 5.0

// DefaultOutlierPolicy flags beyond 5 units and keeps flagged markers in the
// mean.
func DefaultOutlierPolicy() OutlierPolicy {
	return OutlierPolicy{Threshold: DefaultOutlierThreshold}
}

// OffsetReport summarizes the positional correction derived from a snapshot.
type OffsetReport struct {
	// Mean is the average offset over the markers counted in Used.
	Mean Offset `json:"mean"`

	// Used is the number of markers contributing to Mean.
	Used int `json:"used"`

	// Outliers lists the markers whose offset magnitude exceeded the policy
	// threshold, whether or not they were excluded.
	Outliers []Marker `json:"outliers,omitempty"`
}

// OffsetReport computes the mean offset across the snapshot's markers under
// the given policy. With no usable markers, Used is 0 and Mean is zero; the
// caller should then leave position untouched.
func (s *Snapshot) OffsetReport(policy OutlierPolicy) OffsetReport {
	var rep OffsetReport
	if s.Empty() {
		return rep
	}

	var sumX, sumY float64
	for _, m := range s.Markers {
		flagged := policy.Threshold > 0 && m.Offset.Magnitude() > policy.Threshold
		if flagged {
			rep.Outliers = append(rep.Outliers, m)
			if policy.Exclude {
				continue
			}
		}
		sumX += m.Offset.DX
		sumY += m.Offset.DY
		rep.Used++
	}
	if rep.Used > 0 {
		rep.Mean = Offset{DX: sumX / float64(rep.Used), DY: sumY / float64(rep.Used)}
	}
	return rep
}

// String renders the offset as "(dx, dy)" for logs.
func (o Offset) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", o.DX, o.DY)
}
