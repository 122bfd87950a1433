package forward

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/gravmag/geom"
	"github.com/phil-mansfield/gravmag/lith"
	"github.com/phil-mansfield/gravmag/prism"
	"github.com/phil-mansfield/gravmag/voxel"
)

// Contribution is the field of one or more prisms at one point.
type Contribution struct {
	// G is the vertical attraction in mGal, positive down.
	G float64
	// B is the magnetic field in nT.
	B r3.Vec
}

func (c Contribution) add(d Contribution) Contribution {
	return Contribution{G: c.G + d.G, B: r3.Add(c.B, d.B)}
}

func (c Contribution) sub(d Contribution) Contribution {
	return Contribution{G: c.G - d.G, B: r3.Sub(c.B, d.B)}
}

// Bound is an upper bound on the magnitude of skipped contributions.
type Bound struct {
	G, B float64
}

// row holds the contribution of one prism to every point.
type row struct {
	c []Contribution
	// bound is nil unless pruning is enabled.
	bound []Bound
}

// cache is an immutable set of contributions for one snapshot. Rows are
// shared between successive caches and never modified once published.
type cache struct {
	snap *voxel.Snapshot
	rows map[voxel.Key]*row
	// sums[i] is the total over all rows at point i.
	sums   []Contribution
	bounds []Bound
	// updates counts incremental updates since the sums were last rebuilt.
	updates int
}

func (a *Assembler) pruning() bool { return a.opt.PruneDistance > 0 }

func (a *Assembler) newRow() *row {
	r := &row{c: make([]Contribution, len(a.points))}
	if a.pruning() {
		r.bound = make([]Bound, len(a.points))
	}
	return r
}

// job is a prism whose row is being computed.
type job struct {
	prism voxel.Prism
	props *lith.Props
	row   *row
}

// jobs returns a job for every key whose lithology contributes anything.
// Keys for which no row is needed get a nil row.
func (a *Assembler) jobs(snap *voxel.Snapshot, keys []voxel.Key) []job {
	out := make([]job, len(keys))
	for n, key := range keys {
		pr := snap.Prism(key)
		out[n].prism = pr
		if p := a.propsOf(pr.ID); p != nil && !geom.Degenerate(pr.Box) {
			out[n].props = p
			out[n].row = a.newRow()
		}
	}
	return out
}

// activeKeys returns, in increasing order, the keys of every prism which
// contributes to the response.
func (a *Assembler) activeKeys(snap *voxel.Snapshot) []voxel.Key {
	keys := []voxel.Key{}
	snap.Each(func(key voxel.Key, id lith.ID) {
		if a.propsOf(id) != nil {
			keys = append(keys, key)
		}
	})
	return keys
}

// contribute fills entry pi of a job's row.
func (a *Assembler) contribute(j *job, pi int) {
	p := a.pos[pi]

	contrast := 0.0
	if a.opt.Gravity {
		contrast = j.props.Contrast
	}
	m := r3.Vec{}
	if a.magnetic && a.ambient[pi].err == nil && j.props.Magnetic() {
		m = j.props.Magnetization(a.ambient[pi].h)
	}

	if a.pruning() {
		if d := geom.Dist(j.prism.Box, p); d > a.opt.PruneDistance {
			j.row.c[pi] = Contribution{}
			j.row.bound[pi] = pruneBound(j.prism.Box, d, contrast, m)
			return
		}
	}

	res := prism.Field(j.prism.Box, p, contrast, m, a.opt.Solver)
	j.row.c[pi] = Contribution{G: res.Gz, B: res.B}
}

// eachPoint calls fn for every observation point on a bounded pool of
// goroutines. It stops early, returning the cancellation error, if ctx is
// cancelled.
func (a *Assembler) eachPoint(ctx context.Context, fn func(pi int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opt.Workers)

	for pi := range a.points {
		pi := pi // per-iteration copy; go.mod targets go 1.21 loop semantics
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(pi)
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return cancelErr(ctx)
	}
	return err
}

// full computes every contribution for snap from scratch.
func (a *Assembler) full(ctx context.Context, snap *voxel.Snapshot) (*cache, error) {
	keys := a.activeKeys(snap)
	jobs := a.jobs(snap, keys)

	c := &cache{
		snap: snap,
		rows: make(map[voxel.Key]*row, len(keys)),
		sums: make([]Contribution, len(a.points)),
	}
	if a.pruning() {
		c.bounds = make([]Bound, len(a.points))
	}

	live := make([]job, 0, len(jobs))
	for n := range jobs {
		if jobs[n].row != nil {
			live = append(live, jobs[n])
			c.rows[keys[n]] = jobs[n].row
		}
	}
	rows := make([]*row, len(live))
	for n := range live {
		rows[n] = live[n].row
	}

	err := a.eachPoint(ctx, func(pi int) {
		for n := range live {
			a.contribute(&live[n], pi)
		}
		c.sumPoint(rows, pi)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// incremental computes the cache for snap from base by re-evaluating only
// the dirty prisms. base is not modified.
func (a *Assembler) incremental(
	ctx context.Context, base *cache, snap *voxel.Snapshot, dirty []voxel.Key,
) (*cache, error) {
	jobs := a.jobs(snap, dirty)
	if len(dirty) > 0 {
		err := a.eachPoint(ctx, func(pi int) {
			for n := range jobs {
				if jobs[n].row != nil {
					a.contribute(&jobs[n], pi)
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}

	next := &cache{
		snap:    snap,
		rows:    make(map[voxel.Key]*row, len(base.rows)+len(dirty)),
		sums:    append([]Contribution{}, base.sums...),
		bounds:  append([]Bound(nil), base.bounds...),
		updates: base.updates,
	}
	for key, r := range base.rows {
		next.rows[key] = r
	}
	if len(dirty) == 0 {
		return next, nil
	}

	for n, key := range dirty {
		if old := base.rows[key]; old != nil {
			next.remove(old)
			delete(next.rows, key)
		}
		if r := jobs[n].row; r != nil {
			next.insert(r)
			next.rows[key] = r
		}
	}

	next.updates++
	if a.opt.ResumEvery > 0 && next.updates >= a.opt.ResumEvery {
		if err := a.resum(ctx, next); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (c *cache) insert(r *row) {
	for i := range c.sums {
		c.sums[i] = c.sums[i].add(r.c[i])
	}
	for i := range c.bounds {
		c.bounds[i].G += r.bound[i].G
		c.bounds[i].B += r.bound[i].B
	}
}

func (c *cache) remove(r *row) {
	for i := range c.sums {
		c.sums[i] = c.sums[i].sub(r.c[i])
	}
	for i := range c.bounds {
		c.bounds[i].G -= r.bound[i].G
		c.bounds[i].B -= r.bound[i].B
	}
}

// resum rebuilds every point's sum from the rows, in key order.
func (a *Assembler) resum(ctx context.Context, c *cache) error {
	keys := make([]voxel.Key, 0, len(c.rows))
	for _, key := range c.snap.Keys() {
		if _, ok := c.rows[key]; ok {
			keys = append(keys, key)
		}
	}
	rows := make([]*row, len(keys))
	for n, key := range keys {
		rows[n] = c.rows[key]
	}

	if err := a.eachPoint(ctx, func(pi int) { c.sumPoint(rows, pi) }); err != nil {
		return err
	}
	c.updates = 0
	return nil
}

// sumPoint sets the sums at point pi from rows, using compensated
// summation in row order.
func (c *cache) sumPoint(rows []*row, pi int) {
	g := make([]float64, len(rows))
	bx := make([]float64, len(rows))
	by := make([]float64, len(rows))
	bz := make([]float64, len(rows))
	for n, r := range rows {
		v := r.c[pi]
		g[n], bx[n], by[n], bz[n] = v.G, v.B.X, v.B.Y, v.B.Z
	}
	c.sums[pi] = Contribution{
		G: floats.SumCompensated(g),
		B: r3.Vec{
			X: floats.SumCompensated(bx),
			Y: floats.SumCompensated(by),
			Z: floats.SumCompensated(bz),
		},
	}

	if c.bounds == nil {
		return
	}
	for n, r := range rows {
		g[n], bx[n] = r.bound[pi].G, r.bound[pi].B
	}
	c.bounds[pi] = Bound{G: floats.Sum(g), B: floats.Sum(bx)}
}
