package flowrender

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	geojson "github.com/paulmach/go.geojson"
)

var (
	seaColor     = color.RGBA{8, 10, 15, 255}
	landColor    = color.RGBA{26, 29, 35, 255}
	outlineColor = color.RGBA{36, 42, 53, 255}
)

// Basemap projects simulation coordinates (x = longitude, y = latitude) to
// surface pixels and rasterizes the land polygons once per surface size.
type Basemap struct {
	width, height int
	scale         float64
	img           *ebiten.Image
}

func NewBasemap(width, height int, scale float64) *Basemap {
	return &Basemap{width: width, height: height, scale: scale}
}

// Project maps a simulation-space point onto the surface using an
// equal-area pseudocylindrical projection. The auxiliary angle is solved
// with a few Newton iterations.
func (b *Basemap) Project(x, y float64) (px, py float64) {
	lat, lng := y, x
	if lat > 89.5 {
		lat = 89.5
	}
	if lat < -89.5 {
		lat = -89.5
	}
	latRad, lngRad := lat*math.Pi/180, lng*math.Pi/180
	theta := latRad
	for i := 0; i < 10; i++ {
		denom := 2 + 2*math.Cos(2*theta)
		if math.Abs(denom) < 1e-9 {
			break
		}
		delta := (2*theta + math.Sin(2*theta) - math.Pi*math.Sin(latRad)) / denom
		theta -= delta
		if math.Abs(delta) < 1e-7 {
			break
		}
	}
	px = (float64(b.width) / 2) + b.scale*(2*math.Sqrt(2)/math.Pi)*lngRad*math.Cos(theta)
	py = (float64(b.height) / 2) - b.scale*math.Sqrt(2)*math.Sin(theta)
	return px, py
}

// Render rasterizes the world polygons from raw GeoJSON into the
// background image. It runs once per dataset/surface change, on the CPU.
func (b *Basemap) Render(worldGeoJSON []byte) error {
	cpu := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	draw.Draw(cpu, cpu.Bounds(), &image.Uniform{seaColor}, image.Point{}, draw.Src)

	fc, err := geojson.UnmarshalFeatureCollection(worldGeoJSON)
	if err != nil {
		return err
	}
	for _, f := range fc.Features {
		if f.Geometry.IsPolygon() {
			b.fillPolygon(cpu, f.Geometry.Polygon)
			for _, ring := range f.Geometry.Polygon {
				b.strokeRing(cpu, ring)
			}
		} else if f.Geometry.IsMultiPolygon() {
			for _, poly := range f.Geometry.MultiPolygon {
				b.fillPolygon(cpu, poly)
				for _, ring := range poly {
					b.strokeRing(cpu, ring)
				}
			}
		}
	}
	b.img = ebiten.NewImageFromImage(cpu)
	return nil
}

// Image returns the rasterized background, or nil before Render.
func (b *Basemap) Image() *ebiten.Image { return b.img }

// fillPolygon scanline-fills one polygon (outer ring plus holes) in
// projected space.
func (b *Basemap) fillPolygon(img *image.RGBA, rings [][][]float64) {
	if len(rings) == 0 {
		return
	}
	type point struct{ x, y float64 }
	projected := make([][]point, len(rings))
	minY, maxY := float64(b.height), 0.0
	for i, ring := range rings {
		projected[i] = make([]point, len(ring))
		for j, p := range ring {
			x, y := b.Project(p[0], p[1])
			projected[i][j] = point{x, y}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	for y := int(minY); y <= int(maxY); y++ {
		if y < 0 || y >= b.height {
			continue
		}
		var crossings []int
		fy := float64(y)
		for _, ring := range projected {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					cx := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					crossings = append(crossings, int(cx))
				}
			}
		}
		sort.Ints(crossings)
		for i := 0; i < len(crossings)-1; i += 2 {
			xs, xe := crossings[i], crossings[i+1]
			if xs < 0 {
				xs = 0
			}
			if xe >= b.width {
				xe = b.width - 1
			}
			for x := xs; x < xe; x++ {
				off := y*img.Stride + x*4
				img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = landColor.R, landColor.G, landColor.B, 255
			}
		}
	}
}

func (b *Basemap) strokeRing(img *image.RGBA, coords [][]float64) {
	for i := 0; i < len(coords)-1; i++ {
		x1, y1 := b.Project(coords[i][0], coords[i][1])
		x2, y2 := b.Project(coords[i+1][0], coords[i+1][1])
		b.line(img, int(x1), int(y1), int(x2), int(y2))
	}
}

// line is plain Bresenham into the CPU image.
func (b *Basemap) line(img *image.RGBA, x1, y1, x2, y2 int) {
	dx, dy := math.Abs(float64(x2-x1)), math.Abs(float64(y2-y1))
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < b.width && y1 >= 0 && y1 < b.height {
			off := y1*img.Stride + x1*4
			img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = outlineColor.R, outlineColor.G, outlineColor.B, 255
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}
