package dataset

import (
	"math"
	"os"
	"strings"
	"testing"
)

const sampleCSV = `name,lat,lng,weight,special
tokyo,35.68,139.69,37.4,false
delhi,28.61,77.21,29.4,false
relay-7,51.51,-0.13,4.2,true
`

func TestFromCSV(t *testing.T) {
	d, err := FromCSV("sample", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}
	if d.Name != "sample" {
		t.Errorf("name = %q, want sample", d.Name)
	}
	if len(d.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(d.Records))
	}
	if d.Records[0].Name != "tokyo" || d.Records[0].Weight != 37.4 {
		t.Errorf("first record = %+v", d.Records[0])
	}
	if !d.Records[2].Special {
		t.Errorf("relay-7 should be special")
	}
}

func TestFromCSVMissingColumn(t *testing.T) {
	_, err := FromCSV("bad", strings.NewReader("name,lat\na,1\n"))
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestNodesSanitizes(t *testing.T) {
	d := &Dataset{Name: "t", Records: []Record{
		{Name: "ok", Lat: 10, Lng: 20, Weight: 5},
		{Name: "neg-weight", Lat: 1, Lng: 2, Weight: -3},
		{Name: "nan-pos", Lat: math.NaN(), Lng: 0, Weight: 1},
	}}
	nodes := d.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2 (non-finite position dropped)", len(nodes))
	}
	if nodes[0].X != 20 || nodes[0].Y != 10 {
		t.Errorf("node 0 = (%v, %v), want lng/lat (20, 10)", nodes[0].X, nodes[0].Y)
	}
	if nodes[1].Weight != 0 {
		t.Errorf("negative weight should clamp to 0, got %v", nodes[1].Weight)
	}
}

func TestLoadLocalFile(t *testing.T) {
	path := t.TempDir() + "/cities.csv"
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "cities" {
		t.Errorf("name = %q, want cities", d.Name)
	}
	if len(d.Records) != 3 {
		t.Errorf("got %d records, want 3", len(d.Records))
	}
}
