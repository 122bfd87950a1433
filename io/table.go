package io

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/gravmag/forward"
)

// ReadStations reads observation points from the x, y and z columns of a
// whitespace-separated table. Every point is assigned to the given line.
func ReadStations(fname, line string) ([]forward.Point, error) {
	cols, err := table.ReadTable(fname, []int{0, 1, 2}, nil)
	if err != nil {
		return nil, err
	}

	xs, ys, zs := cols[0], cols[1], cols[2]
	if len(xs) == 0 {
		return nil, fmt.Errorf("Station file %s contains no stations.", fname)
	}
	pts := make([]forward.Point, len(xs))
	for i := range pts {
		pts[i] = forward.Point{X: xs[i], Y: ys[i], Z: zs[i], Line: line}
	}
	return pts, nil
}

var responseColumns = []string{
	"index", "distance", "x", "y", "z",
	"gravity", "magnetic", "bx", "by", "bz",
	"pruned_gravity", "pruned_magnetic",
}

// WriteResponse writes a response as one whitespace-separated table per
// profile. Gravity is in mGal, magnetic values in nT and lengths in metres.
// Values which were not computed are written as NaN.
func WriteResponse(w io.Writer, resp *forward.Response) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# version %d\n", resp.Version)
	for _, prof := range resp.Profiles() {
		fmt.Fprintf(bw, "# line %s\n", prof.Line)
		fmt.Fprintf(bw, "# %s\n", strings.Join(responseColumns, " "))

		for n, i := range prof.Index {
			p := resp.Points[i]
			fmt.Fprintf(bw, "%d %.4f %.4f %.4f %.4f", i, prof.Distance[n], p.X, p.Y, p.Z)
			fmt.Fprintf(bw, " %.8g %.8g", at(resp.Gravity, i), at(resp.Magnetic, i))
			if resp.Field != nil {
				b := resp.Field[i]
				fmt.Fprintf(bw, " %.8g %.8g %.8g", b.X, b.Y, b.Z)
			} else {
				fmt.Fprintf(bw, " NaN NaN NaN")
			}
			fmt.Fprintf(bw, " %.4g %.4g\n",
				at(resp.PrunedGravity, i), at(resp.PrunedMagnetic, i))
		}
	}

	return bw.Flush()
}

func at(vals []float64, i int) float64 {
	if vals == nil {
		return math.NaN()
	}
	return vals[i]
}

// WriteResponseFile writes a response to the named file. The name "-"
// writes to stdout.
func WriteResponseFile(fname string, resp *forward.Response) error {
	if fname == "-" {
		return WriteResponse(os.Stdout, resp)
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	if err := WriteResponse(f, resp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
