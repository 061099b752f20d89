package main

import (
	"fmt"
	"image"

	gg "github.com/fogleman/gg"
)

const margin = 40

// Render draws the probe time of every round as a line, with the median
// marked, on a w x h canvas.
func Render(t *Trace, w, h int) image.Image {
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	min, max, median := t.Stats()
	if max == min {
		max = min + 1
	}
	plotW := float64(w - 2*margin)
	plotH := float64(h - 2*margin)
	x := func(i int) float64 {
		if len(t.Rounds) < 2 {
			return margin
		}
		return margin + plotW*float64(i)/float64(len(t.Rounds)-1)
	}
	y := func(v uint64) float64 {
		return float64(h-margin) - plotH*float64(v-min)/float64(max-min)
	}

	// Axes
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, margin, margin, float64(h-margin))
	dc.DrawLine(margin, float64(h-margin), float64(w-margin), float64(h-margin))
	dc.Stroke()

	// Median
	if len(t.Rounds) > 0 {
		dc.SetRGBA(0.8, 0.1, 0.1, 0.6)
		dc.DrawLine(margin, y(median), float64(w-margin), y(median))
		dc.Stroke()
	}

	// Rounds
	dc.SetRGB(0.1, 0.3, 0.8)
	for i, r := range t.Rounds {
		if i == 0 {
			dc.MoveTo(x(i), y(r.Cycles))
			continue
		}
		dc.LineTo(x(i), y(r.Cycles))
	}
	dc.Stroke()

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%d rounds, %d desync", len(t.Rounds), t.Desyncs), margin, margin/2)
	dc.DrawStringAnchored(fmt.Sprintf("%d", max), margin-4, margin, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%d", min), margin-4, float64(h-margin), 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("median %d", median), float64(w-margin), y(median)-4, 1, 1)

	return dc.Image()
}
