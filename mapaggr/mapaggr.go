package mapaggr

import (
	"citifix/models"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const (
	expectedCells = 16
	minLevel      = 2
	maxLevel      = 18

	// Cells holding up to this many pins keep the individual markers.
	maxPinsPerCell = 10
)

// Aggregator clusters map pins into S2 cells so the admin map stays
// readable when a viewport covers thousands of complaints. The cell level
// is picked from the viewport size: roughly expectedCells cells per view.
type Aggregator struct {
	level int
	cells map[s2.CellID][]models.MapPin
}

func cellLevelFor(vp *models.ViewPort) int {
	minLL := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	maxLL := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)
	rect := s2.Rect{
		Lat: r1.Interval{Lo: minLL.Lat.Radians(), Hi: maxLL.Lat.Radians()},
		Lng: s1.Interval{Lo: minLL.Lng.Radians(), Hi: maxLL.Lng.Radians()},
	}
	vpArea := rect.Area()

	centerLL := s2.LatLngFromDegrees(
		(vp.LatMin+vp.LatMax)/2, (vp.LonMin+vp.LonMax)/2)
	centerCell := s2.CellIDFromLatLng(centerLL)

	for lv := maxLevel; lv >= minLevel; lv-- {
		cell := s2.CellFromCellID(centerCell.Parent(lv))
		if vpArea/cell.ApproxArea() < expectedCells {
			return lv
		}
	}
	return minLevel
}

func New(vp *models.ViewPort) *Aggregator {
	return &Aggregator{
		level: cellLevelFor(vp),
		cells: make(map[s2.CellID][]models.MapPin),
	}
}

// Add buckets one pin into its S2 cell at the aggregator's level.
func (a *Aggregator) Add(pin models.MapPin) {
	cell := s2.CellIDFromLatLng(
		s2.LatLngFromDegrees(pin.Latitude, pin.Longitude)).Parent(a.level)
	a.cells[cell] = append(a.cells[cell], pin)
}

// Pins returns the aggregated markers. Sparse cells keep their individual
// pins; dense cells collapse to one cluster marker at the cell center with
// the pin count.
func (a *Aggregator) Pins() []models.MapPin {
	result := make([]models.MapPin, 0, len(a.cells))
	for cell, pins := range a.cells {
		if len(pins) <= maxPinsPerCell {
			result = append(result, pins...)
			continue
		}
		center := cell.LatLng()
		result = append(result, models.MapPin{
			Latitude:  center.Lat.Degrees(),
			Longitude: center.Lng.Degrees(),
			Count:     int64(len(pins)),
		})
	}
	return result
}

// Aggregate is the one-shot convenience over New/Add/Pins.
func Aggregate(vp *models.ViewPort, pins []models.MapPin) []models.MapPin {
	a := New(vp)
	for _, pin := range pins {
		a.Add(pin)
	}
	return a.Pins()
}
