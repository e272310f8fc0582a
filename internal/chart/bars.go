package chart

// Headroom leaves visual room above the tallest bar.
const Headroom = 1.2

// emptyMax is the scale used when every value is zero.
const emptyMax = 100.0

// BarLayout holds the fixed dimensions of a bar chart, in pixels.
type BarLayout struct {
	BarWidth  float64
	Spacing   float64
	Height    float64 // drawable height of the bars
	AxisWidth float64 // room for y-axis labels left of the first bar
	GridLines int
}

// DefaultBarLayout matches the dimensions the charts are drawn with.
var DefaultBarLayout = BarLayout{
	BarWidth:  20,
	Spacing:   16,
	Height:    200,
	AxisWidth: 40,
	GridLines: 4,
}

// Bar is one laid-out bar. Y is the top edge, measured from the top of the canvas.
type Bar struct {
	Datum
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GridLine is a horizontal guide with its axis value.
type GridLine struct {
	Value float64 `json:"value"`
	Y     float64 `json:"y"`
}

// BarChart is the full geometry of a bar chart.
type BarChart struct {
	Bars         []Bar      `json:"bars"`
	MaxValue     float64    `json:"max_value"`
	ContentWidth float64    `json:"content_width"`
	Height       float64    `json:"height"`
	GridLines    []GridLine `json:"grid_lines"`
}

// MaxValue returns the top of the value axis for data.
func MaxValue(data []Datum) float64 {
	var m float64
	for _, d := range data {
		if d.Value > m {
			m = d.Value
		}
	}
	if m == 0 {
		m = emptyMax
	}
	return m * Headroom
}

// Bars lays data out left to right in submission order. A zero layout means
// DefaultBarLayout; otherwise unset sizes fall back one by one, except AxisWidth
// which may legitimately be 0. At t = 1 no bar is taller than layout.Height.
func Bars(data []Datum, t float64, layout BarLayout) BarChart {
	layout = layout.withDefaults()
	t = Clamp(t)
	maxValue := MaxValue(data)
	slot := layout.BarWidth + layout.Spacing

	chart := BarChart{
		Bars:         make([]Bar, len(data)),
		MaxValue:     maxValue,
		ContentWidth: float64(len(data))*slot + layout.Spacing*2,
		Height:       layout.Height,
	}
	for i, d := range data {
		v := d.Value
		if v < 0 {
			v = 0
		}
		h := v / maxValue * layout.Height * t
		chart.Bars[i] = Bar{
			Datum:  d,
			X:      layout.AxisWidth + slot*float64(i) + layout.Spacing/2,
			Y:      layout.Height - h,
			Width:  layout.BarWidth,
			Height: h,
		}
	}
	for i := 0; i <= layout.GridLines; i++ {
		frac := float64(i) / float64(layout.GridLines)
		chart.GridLines = append(chart.GridLines, GridLine{
			Value: maxValue * frac,
			Y:     layout.Height - layout.Height*frac,
		})
	}
	return chart
}

func (l BarLayout) withDefaults() BarLayout {
	if l == (BarLayout{}) {
		return DefaultBarLayout
	}
	if l.BarWidth <= 0 {
		l.BarWidth = DefaultBarLayout.BarWidth
	}
	if l.Spacing <= 0 {
		l.Spacing = DefaultBarLayout.Spacing
	}
	if l.Height <= 0 {
		l.Height = DefaultBarLayout.Height
	}
	if l.AxisWidth < 0 {
		l.AxisWidth = DefaultBarLayout.AxisWidth
	}
	if l.GridLines <= 0 {
		l.GridLines = DefaultBarLayout.GridLines
	}
	return l
}
