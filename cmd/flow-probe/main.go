// Command flow-probe inspects a dataset without opening a window: it
// prints a summary, the heaviest nodes, and an empirical check that the
// weighted sampler's draw frequencies track the configured weights.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/alecthomas/kong"
	"gonum.org/v1/gonum/stat"

	"github.com/sudorandom/flow-stream/pkg/dataset"
	"github.com/sudorandom/flow-stream/pkg/flowsim"
)

var cli struct {
	Dataset  string `arg:"" help:"Dataset CSV path or http(s) URL."`
	CacheDir string `help:"Download cache for remote files." default:"data/cache"`
	Top      int    `help:"How many of the heaviest nodes to list." default:"10"`
	Samples  int    `help:"Sampler draws for the frequency check." default:"200000"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("flow-probe"),
		kong.Description("Dataset and sampler inspection tool."))
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ds, err := dataset.Load(cli.Dataset, cli.CacheDir)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	nodes := ds.Nodes()

	printSummary(ds, nodes)
	printTopNodes(ds.Records, cli.Top)
	if len(nodes) > 0 {
		printSamplerCheck(nodes, cli.Samples)
	}
}

func printSummary(ds *dataset.Dataset, nodes []flowsim.Node) {
	var total float64
	special := 0
	for _, n := range nodes {
		total += n.Weight
		if n.Special {
			special++
		}
	}
	fmt.Printf("Dataset: %s\n", ds.Name)
	fmt.Printf("  records:        %d\n", len(ds.Records))
	fmt.Printf("  usable nodes:   %d (%d dropped)\n", len(nodes), len(ds.Records)-len(nodes))
	fmt.Printf("  special nodes:  %d\n", special)
	fmt.Printf("  total weight:   %.2f\n", total)
}

func printTopNodes(records []dataset.Record, top int) {
	sorted := make([]dataset.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	if top > len(sorted) {
		top = len(sorted)
	}
	fmt.Printf("\nTop %d nodes by weight:\n", top)
	for i := 0; i < top; i++ {
		r := sorted[i]
		mark := ""
		if r.Special {
			mark = " [special]"
		}
		fmt.Printf("  %2d. %-24s %9.2f  (%.2f, %.2f)%s\n", i+1, r.Name, r.Weight, r.Lat, r.Lng, mark)
	}
}

// printSamplerCheck draws from the alias sampler and compares observed
// frequencies against the weight distribution with a chi-squared score.
func printSamplerCheck(nodes []flowsim.Node, samples int) {
	weights := make([]float64, len(nodes))
	var total float64
	for i, n := range nodes {
		weights[i] = n.Weight
		total += n.Weight
	}

	sampler := flowsim.NewAliasSampler(weights)
	counts := make([]float64, len(nodes))
	for i := 0; i < samples; i++ {
		idx, err := sampler.Sample()
		if err != nil {
			log.Fatalf("Sampler failed: %v", err)
		}
		counts[idx]++
	}

	expected := make([]float64, len(nodes))
	if total > 0 {
		for i, w := range weights {
			expected[i] = w / total * float64(samples)
		}
	} else {
		// Zero total weight falls back to uniform draws.
		for i := range expected {
			expected[i] = float64(samples) / float64(len(nodes))
		}
	}

	// Zero-weight nodes are never drawn; drop them from the test so the
	// chi-squared terms stay finite.
	obs := make([]float64, 0, len(counts))
	exp := make([]float64, 0, len(expected))
	for i := range expected {
		if expected[i] > 0 {
			obs = append(obs, counts[i])
			exp = append(exp, expected[i])
		}
	}

	fmt.Printf("\nSampler check (%d draws):\n", samples)
	fmt.Printf("  chi-squared: %.2f over %d buckets\n", stat.ChiSquare(obs, exp), len(exp))

	type bucket struct {
		idx      int
		observed float64
	}
	buckets := make([]bucket, len(counts))
	for i, c := range counts {
		buckets[i] = bucket{i, c}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].observed > buckets[j].observed })
	n := 5
	if n > len(buckets) {
		n = len(buckets)
	}
	fmt.Println("  most sampled:")
	for _, b := range buckets[:n] {
		fmt.Printf("    node %4d: observed %8.0f  expected %8.0f\n", b.idx, b.observed, expected[b.idx])
	}
}
