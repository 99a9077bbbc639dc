package render

import (
	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	legendFontSize  = 9.0
	legendSwatch    = 16
	legendSwatchGap = 4
	legendItemGap   = 12
	legendRowGap    = 4
)

type legendEntry struct {
	name  string
	color drawing.Color
}

// legend draws the entity legend where the ChartSpec places it. X and Y are
// fractions of the plot area, measured from its left and bottom edges; the
// anchors name the side of the legend box that sits on that point.
func legend(pos domain.Legend, entries []legendEntry) chart.Renderable {
	return func(r chart.Renderer, plot chart.Box, defaults chart.Style) {
		text := chart.Style{FontColor: axisColor, FontSize: legendFontSize}.InheritFrom(defaults)
		text.WriteTextOptionsToRenderer(r)

		var titleWidth, lineHeight int
		if pos.Title != "" {
			tb := r.MeasureText(pos.Title)
			titleWidth, lineHeight = tb.Width(), tb.Height()
		}
		widths := make([]int, len(entries))
		for i, e := range entries {
			tb := r.MeasureText(e.name)
			widths[i] = legendSwatch + legendSwatchGap + tb.Width()
			lineHeight = max(lineHeight, tb.Height())
		}

		horizontal := pos.Orientation == "h"
		width, height := legendSize(horizontal, titleWidth, widths, lineHeight)
		x, y := legendOrigin(pos, plot, width, height)

		cx, baseline := x, y+lineHeight
		if pos.Title != "" {
			r.Text(pos.Title, cx, baseline)
			if horizontal {
				cx += titleWidth + legendItemGap
			} else {
				baseline += lineHeight + legendRowGap
			}
		}
		for i, e := range entries {
			mid := baseline - lineHeight/2
			chart.Style{StrokeColor: e.color, StrokeWidth: 2}.WriteDrawingOptionsToRenderer(r)
			r.MoveTo(cx, mid)
			r.LineTo(cx+legendSwatch, mid)
			r.Stroke()

			text.WriteTextOptionsToRenderer(r)
			r.Text(e.name, cx+legendSwatch+legendSwatchGap, baseline)
			if horizontal {
				cx += widths[i] + legendItemGap
			} else {
				baseline += lineHeight + legendRowGap
			}
		}
	}
}

func legendSize(horizontal bool, titleWidth int, widths []int, lineHeight int) (int, int) {
	items := len(widths)
	if titleWidth > 0 {
		items++
	}
	if items == 0 {
		return 0, 0
	}
	if horizontal {
		width := titleWidth
		for _, w := range widths {
			width += w
		}
		return width + (items-1)*legendItemGap, lineHeight
	}
	width := titleWidth
	for _, w := range widths {
		width = max(width, w)
	}
	return width, items*lineHeight + (items-1)*legendRowGap
}

// legendOrigin returns the top-left corner of a width x height legend box,
// kept on the canvas.
func legendOrigin(pos domain.Legend, plot chart.Box, width, height int) (int, int) {
	x := plot.Left + int(pos.X*float64(plot.Width()))
	switch pos.XAnchor {
	case "right":
		x -= width
	case "center":
		x -= width / 2
	}

	y := plot.Bottom - int(pos.Y*float64(plot.Height()))
	switch pos.YAnchor {
	case "bottom":
		y -= height
	case "middle":
		y -= height / 2
	}
	return max(x, 0), max(y, 0)
}
