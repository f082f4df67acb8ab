package storage

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry describes one supported disk image layout, parsed from the
// embedded CSV table exactly the way the teacher's disks.GetPredefinedDiskGeometry
// parses disk-geometries.csv at init().
type Geometry struct {
	Slug            string `csv:"slug"`
	Name            string `csv:"name"`
	FormFactor      string `csv:"form_factor"`
	TotalRecords    uint   `csv:"records"`
	Tracks          uint   `csv:"tracks"`
	Heads           uint   `csv:"heads"`
	SectorsPerTrack uint   `csv:"sectors_per_track"`
}

// TotalSizeBytes gives the minimum image file size for this geometry.
func (g Geometry) TotalSizeBytes() int64 {
	return int64(g.TotalRecords) * 256
}

//go:embed geometry.csv
var geometryRawCSV string

var geometries map[string]Geometry

func init() {
	geometries = make(map[string]Geometry)
	reader := strings.NewReader(geometryRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := geometries[row.Slug]; exists {
			return fmt.Errorf("duplicate geometry definition for slug %q", row.Slug)
		}
		geometries[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// GetGeometry returns the predefined geometry for slug, e.g. "2d".
func GetGeometry(slug string) (Geometry, error) {
	g, ok := geometries[slug]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
	}
	return g, nil
}
