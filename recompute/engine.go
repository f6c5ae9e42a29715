// Package recompute implements the dependency-ordered recompute pass:
// topologically sort the temp partition plus any main-partition objects
// reachable from it (or swept in by a modified-after cutoff), then
// link/recompute/diff each in order.
package recompute

import (
	"bytes"
	"fmt"
	"time"

	"adrcore/aerr"
	"adrcore/identifier"
	"adrcore/store"
	"adrcore/store/archive"
	"adrcore/tslice"
)

// Result is the summary of one recompute pass.
type Result struct {
	ModifiedCount   int
	UnmodifiedCount int
}

// Terrain supplies elevation lookups to variants whose Recompute needs
// them; a nil Terrain answers "unknown" for every query.
type Terrain interface {
	ElevationFt(lat, lon float64) (int, bool)
}

type topoCtx struct {
	terrain   Terrain
	cancelled func() bool
}

func (c topoCtx) ElevationFt(lat, lon float64) (int, bool) {
	if c.terrain == nil {
		return 0, false
	}
	return c.terrain.ElevationFt(lat, lon)
}

func (c topoCtx) CancelRequested() bool {
	if c.cancelled == nil {
		return false
	}
	return c.cancelled()
}

// Engine runs the recompute algorithm against a Store.
type Engine struct {
	store     *store.Store
	terrain   Terrain
	el        *aerr.ErrorLogger
	cancelled func() bool
	changed   map[identifier.UUID]bool
}

func NewEngine(st *store.Store, terrain Terrain, el *aerr.ErrorLogger) *Engine {
	return &Engine{store: st, terrain: terrain, el: el}
}

// SetCancelFunc installs a predicate polled between vertices so a long
// recompute pass can be cooperatively aborted.
func (e *Engine) SetCancelFunc(f func() bool) { e.cancelled = f }

// ErrCancelled is returned when the cancel predicate fires mid-pass.
var ErrCancelled = aerr.Cancelled

// ErrCycle is returned when the dependency graph is not a DAG -- a
// fatal ingestion error.
type ErrCycle struct {
	Cycle []identifier.UUID
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("recompute: dependency cycle involving %d objects", len(e.Cycle))
}

// Run executes the full recompute algorithm. modifiedAfter is a
// Unix-second cutoff; pass 0 to disable the modified-after sweep and
// only process temp-reachable objects.
func (e *Engine) Run(modifiedAfter int64) (Result, error) {
	order, err := e.buildOrder(modifiedAfter)
	if err != nil {
		return Result{}, err
	}

	ctx := topoCtx{terrain: e.terrain, cancelled: e.cancelled}
	var result Result
	processed := 0
	lastFlush := time.Now()

	for _, v := range order {
		if ctx.CancelRequested() {
			return result, ErrCancelled
		}
		changed, err := e.processVertex(v, ctx)
		if err != nil {
			return result, fmt.Errorf("recompute: object %s: %w", v.uuid, err)
		}
		if changed {
			result.ModifiedCount++
		} else {
			result.UnmodifiedCount++
		}
		processed++
		if processed%1024 == 0 {
			e.store.FlushCache(lastFlush.Add(-60 * time.Second))
			lastFlush = time.Now()
		}
	}
	return result, nil
}

type vertex struct {
	uuid   identifier.UUID
	isTemp bool
}

// buildOrder enumerates temp ∪ main-reachable-from-temp vertices (plus
// any main object meeting the modifiedAfter cutoff), builds the
// dependency edges, and returns a topological order.
func (e *Engine) buildOrder(modifiedAfter int64) ([]vertex, error) {
	tempUUIDs, err := e.store.AllTempUUIDs()
	if err != nil {
		return nil, err
	}

	var cutoffUUIDs []identifier.UUID
	if modifiedAfter > 0 {
		cutoffUUIDs, err = e.store.FindModifiedAfter(modifiedAfter)
		if err != nil {
			return nil, err
		}
	}

	indexOf := make(map[identifier.UUID]int)
	vertices := make([]vertex, 0, len(tempUUIDs)+len(cutoffUUIDs))
	addVertex := func(u identifier.UUID, isTemp bool) int {
		if i, ok := indexOf[u]; ok {
			return i
		}
		i := len(vertices)
		indexOf[u] = i
		vertices = append(vertices, vertex{uuid: u, isTemp: isTemp})
		return i
	}
	for _, u := range tempUUIDs {
		addVertex(u, true)
	}
	for _, u := range cutoffUUIDs {
		addVertex(u, false)
	}

	adj := make(map[int][]int) // u -> v means u depends on v (v computed first)
	walked := make(map[int]bool)
	var walk func(i int) error
	walk = func(i int) error {
		if walked[i] {
			return nil
		}
		walked[i] = true
		deps, err := e.store.FindDependencies(vertices[i].uuid)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			dj, existed := indexOf[dep]
			if !existed {
				dj = addVertex(dep, false)
			}
			adj[i] = append(adj[i], dj)
			if err := walk(dj); err != nil {
				return err
			}
		}
		return nil
	}
	for i := 0; i < len(vertices); i++ {
		if err := walk(i); err != nil {
			return nil, err
		}
	}

	order, err := topoSort(vertices, adj)
	if err != nil {
		return nil, err
	}
	out := make([]vertex, len(order))
	for i, idx := range order {
		out[i] = vertices[idx]
	}
	return out, nil
}

// topoSort runs Kahn's algorithm: adj[u] lists u's dependencies, so a
// vertex is only emitted once every dependency has been emitted
// (dependency-first order, matching "v must be recomputed first").
func topoSort(vertices []vertex, adj map[int][]int) ([]int, error) {
	n := len(vertices)
	indegree := make([]int, n) // count of remaining unresolved dependencies
	reverse := make(map[int][]int)
	for u, deps := range adj {
		indegree[u] = len(deps)
		for _, v := range deps {
			reverse[v] = append(reverse[v], u)
		}
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	emitted := make([]bool, n)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		emitted[u] = true
		for _, w := range reverse[u] {
			indegree[w]--
			if indegree[w] == 0 {
				queue = append(queue, w)
			}
		}
	}
	if len(order) != n {
		var cyc []identifier.UUID
		for i, done := range emitted {
			if !done {
				cyc = append(cyc, vertices[i].uuid)
			}
		}
		return nil, &ErrCycle{Cycle: cyc}
	}
	return order, nil
}

// processVertex links and recomputes one object, diffing before and
// after to decide whether it needs saving, and returns whether the
// object was modified.
func (e *Engine) processVertex(v vertex, ctx topoCtx) (bool, error) {
	obj, err := e.store.Load(v.uuid)
	if err != nil || obj == nil {
		return false, fmt.Errorf("load: %w", err)
	}

	if !v.isTemp {
		changed, err := e.anyDependencyChanged(v.uuid)
		if err != nil {
			return false, err
		}
		if !changed && obj.Modified == 0 {
			return false, nil
		}
	}

	pre := encodeForDiff(obj)

	if err := obj.Link(e.store); err != nil {
		return false, fmt.Errorf("link: %w", err)
	}
	if err := obj.Recompute(ctx); err != nil {
		return false, fmt.Errorf("recompute: %w", err)
	}

	post := encodeForDiff(obj)
	if bytes.Equal(pre, post) {
		return false, nil
	}

	obj.Modified = time.Now().Unix()
	if v.isTemp {
		if err := e.store.Save(obj, true); err != nil {
			return false, err
		}
		if err := e.store.PromoteTemp(v.uuid); err != nil {
			return false, err
		}
	} else {
		if err := e.store.Save(obj, false); err != nil {
			return false, err
		}
	}
	e.markChanged(v.uuid)
	return true, nil
}

// markChanged records that u was modified this pass, so checking
// whether any out-neighbour was marked changed is O(1).
func (e *Engine) markChanged(u identifier.UUID) {
	if e.changed == nil {
		e.changed = make(map[identifier.UUID]bool)
	}
	e.changed[u] = true
}

func (e *Engine) anyDependencyChanged(u identifier.UUID) (bool, error) {
	deps, err := e.store.FindDependencies(u)
	if err != nil {
		return false, err
	}
	for _, d := range deps {
		if e.changed[d] {
			return true, nil
		}
	}
	return false, nil
}

func encodeForDiff(obj *tslice.Object) []byte {
	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	store.EncodeObject(w, obj)
	return buf.Bytes()
}
