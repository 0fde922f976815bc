// tinyplot renders a tinybench CSV as a grouped bar chart of mean
// per-operation latency: one bar group per benchmark phase, one color
// per engine.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func main() {
	in := flag.String("in", "results.csv", "tinybench CSV to read")
	out := flag.String("out", "results.png", "chart file to write (format by extension)")
	flag.Parse()

	engines, phases, latency, err := readResults(*in)
	if err != nil {
		log.Fatal(err)
	}
	if len(engines) == 0 {
		log.Fatalf("%s: no result rows", *in)
	}

	p := plot.New()
	p.Title.Text = "Mean operation latency"
	p.Y.Label.Text = "ns / op"

	w := vg.Points(15)
	for i, eng := range engines {
		vals := make(plotter.Values, len(phases))
		for j, ph := range phases {
			vals[j] = latency[eng][ph]
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			log.Fatal(err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = w * vg.Length(float64(i)-float64(len(engines)-1)/2)
		p.Add(bars)
		p.Legend.Add(eng, bars)
	}
	p.Legend.Top = true
	p.NominalX(phases...)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, *out); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote %s\n", *out)
}

// readResults parses the CSV into engine and phase lists (in order of
// first appearance) and a latency lookup.
func readResults(path string) (engines, phases []string, latency map[string]map[string]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	latency = make(map[string]map[string]float64)
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue // header
		}
		eng, phase := row[0], row[2]
		ns, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		if _, ok := latency[eng]; !ok {
			latency[eng] = make(map[string]float64)
			engines = append(engines, eng)
		}
		if !contains(phases, phase) {
			phases = append(phases, phase)
		}
		latency[eng][phase] = ns
	}
	return engines, phases, latency, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
