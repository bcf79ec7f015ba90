// Package dataset loads node lists for the flow simulation: CSV files or
// URLs, a badger-backed snapshot store, and a live websocket feed. Each
// load produces a complete dataset; the consumers replace their node set
// wholesale, never patch it.
package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/sudorandom/flow-stream/pkg/flowsim"
	"github.com/sudorandom/flow-stream/pkg/utils"
)

// Record is one CSV row: a named location with a relative weight.
type Record struct {
	Name    string  `csv:"name"`
	Lat     float64 `csv:"lat"`
	Lng     float64 `csv:"lng"`
	Weight  float64 `csv:"weight"`
	Special bool    `csv:"special"`
}

// Dataset is a named, ordered node list.
type Dataset struct {
	Name    string
	Records []Record
}

// FromCSV parses records from r. Row-level value errors surface from the
// csv layer; malformed numeric fields are handled later, at the simulation
// boundary.
func FromCSV(name string, r io.Reader) (*Dataset, error) {
	var records []*Record
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	d := &Dataset{Name: name, Records: make([]Record, 0, len(records))}
	for _, rec := range records {
		d.Records = append(d.Records, *rec)
	}
	return d, nil
}

// Load reads a dataset from a local path or an http(s) URL. Remote files
// go through the local download cache.
func Load(pathOrURL, cacheDir string) (*Dataset, error) {
	name := strings.TrimSuffix(filepath.Base(pathOrURL), ".csv")
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		r, err := utils.CachedReader(pathOrURL, cacheDir, "[dataset]")
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return FromCSV(name, r)
	}
	f, err := os.Open(pathOrURL)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromCSV(name, f)
}

// Nodes converts the records into sanitized simulation nodes, clamping
// malformed weights and dropping non-finite positions at this boundary so
// nothing downstream sees them.
func (d *Dataset) Nodes() []flowsim.Node {
	nodes := make([]flowsim.Node, 0, len(d.Records))
	for _, r := range d.Records {
		nodes = append(nodes, flowsim.Node{
			X:       r.Lng,
			Y:       r.Lat,
			Weight:  r.Weight,
			Special: r.Special,
		})
	}
	return flowsim.SanitizeNodes(nodes)
}
