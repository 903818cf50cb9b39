package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/samber/lo"
)

type gpxDoc struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
	Routes  []gpxRoute `xml:"rte"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxRoute struct {
	Name   string     `xml:"name"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele"`
	Time string   `xml:"time"`
}

var errNoTracks = errors.New("no valid tracks or routes found in GPX file")

// ParseTracks decodes GPX and extracts named point sequences. All segments
// of a track are concatenated. When the file carries no tracks, routes are
// used as a fallback. Tracks without points are dropped.
func ParseTracks(r io.Reader) ([]wire.Track, error) {
	var doc gpxDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	tracks := make([]wire.Track, 0, len(doc.Tracks))
	for i, trk := range doc.Tracks {
		points := make([]wire.Point, 0)
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				points = append(points, toPoint(pt))
			}
		}
		tracks = append(tracks, wire.Track{
			Name:   defaultName(trk.Name, "Track", i),
			Points: points,
		})
	}
	tracks = lo.Filter(tracks, func(t wire.Track, _ int) bool { return len(t.Points) > 0 })

	if len(tracks) == 0 {
		for i, rte := range doc.Routes {
			if len(rte.Points) == 0 {
				continue
			}
			points := make([]wire.Point, 0, len(rte.Points))
			for _, pt := range rte.Points {
				points = append(points, toPoint(pt))
			}
			tracks = append(tracks, wire.Track{
				Name:   defaultName(rte.Name, "Route", i),
				Points: points,
			})
		}
	}

	if len(tracks) == 0 {
		return nil, errNoTracks
	}
	return tracks, nil
}

func toPoint(pt gpxPoint) wire.Point {
	out := wire.Point{Lat: pt.Lat, Lon: pt.Lon, Ele: pt.Ele}
	if pt.Time != "" {
		if ts, err := time.Parse(time.RFC3339, pt.Time); err == nil {
			out.Time = &ts
		}
	}
	return out
}

func defaultName(name, kind string, idx int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s %d", kind, idx+1)
}
