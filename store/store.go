// Package store is the versioned object store: a relational index over
// packed archive blobs (modernc.org/sqlite), an in-process object cache
// with reference-counted eviction, and the packed binary snapshot/archive
// formats for bulk load and interchange.
package store

import (
	"bytes"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"adrcore/aerr"
	"adrcore/alog"
	"adrcore/identifier"
	"adrcore/store/archive"
	"adrcore/tslice"

	_ "modernc.org/sqlite"
)

// Store is the single-process object store. It is not safe for
// concurrent use by multiple goroutines without external
// synchronisation; the core is single-threaded by design.
type Store struct {
	db  *sql.DB
	log *alog.Logger

	cacheMu   sync.Mutex
	cache     map[identifier.UUID]*cacheEntry
	cacheCap  int

	tx *sql.Tx // non-nil while a transaction is open
}

type cacheEntry struct {
	obj      *tslice.Object
	refs     int
	lastUsed time.Time
}

// Open creates or opens a store database at path, applies the schema,
// and returns a ready Store. An empty path opens an ephemeral in-memory
// store; ":memory:" is also accepted directly.
func Open(path string, lg *alog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite, single writer per process
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	s := &Store{
		db:       db,
		log:      lg,
		cache:    make(map[identifier.UUID]*cacheEntry),
		cacheCap: 8192,
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SetWAL toggles SQLite's write-ahead-log journal mode: WAL trades a
// small amount of durability latency for much higher throughput during
// bulk ingestion, and is turned off again for the final, durable commit.
func (s *Store) SetWAL(on bool) error {
	mode := "DELETE"
	if on {
		mode = "WAL"
	}
	_, err := s.db.Exec("PRAGMA journal_mode=" + mode)
	return err
}

func (s *Store) conn() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Begin opens a transaction; all subsequent Store calls run within it
// until Commit or Rollback.
func (s *Store) Begin() error {
	if s.tx != nil {
		return fmt.Errorf("store: transaction already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *Store) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("store: no open transaction")
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

func (s *Store) Rollback() error {
	if s.tx == nil {
		return fmt.Errorf("store: no open transaction")
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// Load fetches an object by UUID, preferring the temp partition over
// the main one, and caches it with a pinned reference.
func (s *Store) Load(u identifier.UUID) (*tslice.Object, error) {
	if identifier.IsNil(u) {
		return nil, nil
	}
	s.cacheMu.Lock()
	if e, ok := s.cache[u]; ok {
		e.lastUsed = time.Now()
		e.refs++
		s.cacheMu.Unlock()
		return e.obj, nil
	}
	s.cacheMu.Unlock()

	obj, fromTemp, err := s.loadFromDB(u)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	obj.MarkFromTemp(fromTemp)
	s.cacheMu.Lock()
	s.cache[u] = &cacheEntry{obj: obj, refs: 1, lastUsed: time.Now()}
	s.cacheMu.Unlock()
	s.evictIfNeeded()
	return obj, nil
}

// Release drops the caller's pinned reference to a cached object,
// allowing it to participate in eviction.
func (s *Store) Release(u identifier.UUID) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if e, ok := s.cache[u]; ok && e.refs > 0 {
		e.refs--
	}
}

func (s *Store) loadFromDB(u identifier.UUID) (obj *tslice.Object, fromTemp bool, err error) {
	ub, _ := u.MarshalBinary()
	var data []byte
	row := s.conn().QueryRow("SELECT data FROM temp_objects WHERE uuid = ?", ub)
	if err := row.Scan(&data); err == nil {
		o, derr := decodeBlob(data)
		return o, true, derr
	} else if err != sql.ErrNoRows {
		return nil, false, err
	}
	row = s.conn().QueryRow("SELECT data FROM objects WHERE uuid = ?", ub)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	o, derr := decodeBlob(data)
	return o, false, derr
}

func decodeBlob(data []byte) (*tslice.Object, error) {
	r := archive.NewReader(bytes.NewReader(data))
	return DecodeObject(r)
}

func encodeBlob(o *tslice.Object) []byte {
	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	EncodeObject(w, o)
	return buf.Bytes()
}

// Save writes an object back to the store (temp partition if toTemp,
// else main), refreshes its index rows, and clears Dirty.
func (s *Store) Save(o *tslice.Object, toTemp bool) error {
	ub, _ := o.UUID.MarshalBinary()
	data := encodeBlob(o)
	table := "objects"
	if toTemp {
		table = "temp_objects"
	}
	_, err := s.conn().Exec(
		fmt.Sprintf("INSERT INTO %s(uuid, tag, modified, dirty, data) VALUES(?,?,?,?,?) "+
			"ON CONFLICT(uuid) DO UPDATE SET tag=excluded.tag, modified=excluded.modified, dirty=excluded.dirty, data=excluded.data", table),
		ub, int(o.Tag()), o.Modified, boolToInt(o.Dirty), data,
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", o.UUID, err)
	}
	o.Dirty = false

	s.cacheMu.Lock()
	if e, ok := s.cache[o.UUID]; ok {
		e.obj = o
	} else {
		s.cache[o.UUID] = &cacheEntry{obj: o, refs: 0, lastUsed: time.Now()}
	}
	s.cacheMu.Unlock()
	return nil
}

// IndexIdent records an ident -> uuid lookup row, ingestion's job since
// only ingestion knows which string field is the canonical "ident" for
// a given tag.
func (s *Store) IndexIdent(ident string, tag tslice.Tag, u identifier.UUID) error {
	ub, _ := u.MarshalBinary()
	_, err := s.conn().Exec("INSERT OR IGNORE INTO ident(ident, tag, uuid) VALUES(?,?,?)", ident, int(tag), ub)
	return err
}

// FindByIdent returns every object UUID indexed under ident for tag.
func (s *Store) FindByIdent(ident string, tag tslice.Tag) ([]identifier.UUID, error) {
	rows, err := s.conn().Query("SELECT uuid FROM ident WHERE ident = ? AND tag = ?", ident, int(tag))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// IndexBBox records or updates an object's bounding box in the R*Tree
// index, in AIXM-native degrees.
func (s *Store) IndexBBox(u identifier.UUID, minLon, maxLon, minLat, maxLat float64) error {
	ub, _ := u.MarshalBinary()
	var id int64
	row := s.conn().QueryRow("SELECT id FROM bbox_uuid WHERE uuid = ?", ub)
	if err := row.Scan(&id); err != nil {
		if err != sql.ErrNoRows {
			return err
		}
		res, err := s.conn().Exec("INSERT INTO bbox_uuid(uuid) VALUES(?)", ub)
		if err != nil {
			return err
		}
		id, _ = res.LastInsertId()
	}
	_, err := s.conn().Exec("INSERT OR REPLACE INTO bbox_rtree(id, min_lon, max_lon, min_lat, max_lat) VALUES(?,?,?,?,?)",
		id, minLon, maxLon, minLat, maxLat)
	return err
}

// FindByBBox returns every UUID whose indexed bounding box intersects
// the query rectangle.
func (s *Store) FindByBBox(minLon, maxLon, minLat, maxLat float64) ([]identifier.UUID, error) {
	rows, err := s.conn().Query(
		`SELECT bbox_uuid.uuid FROM bbox_rtree JOIN bbox_uuid ON bbox_uuid.id = bbox_rtree.id
		 WHERE bbox_rtree.min_lon <= ? AND bbox_rtree.max_lon >= ?
		   AND bbox_rtree.min_lat <= ? AND bbox_rtree.max_lat >= ?`,
		maxLon, minLon, maxLat, minLat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// IndexDependency records that u depends on dep, e.g. an Airspace
// component depending on a border polygon, or a RouteSegment depending
// on its endpoints.
func (s *Store) IndexDependency(u, dep identifier.UUID, temp bool) error {
	ub, _ := u.MarshalBinary()
	depb, _ := dep.MarshalBinary()
	table := "deps"
	if temp {
		table = "temp_deps"
	}
	_, err := s.conn().Exec(fmt.Sprintf("INSERT OR IGNORE INTO %s(uuid, dep_uuid) VALUES(?,?)", table), ub, depb)
	return err
}

// FindDependencies returns the UUIDs u directly depends on.
func (s *Store) FindDependencies(u identifier.UUID) ([]identifier.UUID, error) {
	ub, _ := u.MarshalBinary()
	rows, err := s.conn().Query("SELECT dep_uuid FROM deps WHERE uuid = ? UNION SELECT dep_uuid FROM temp_deps WHERE uuid = ?", ub, ub)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// FindDependsOn returns the UUIDs that directly depend on u (the
// reverse edge), used to seed the recompute frontier from a changed
// object.
func (s *Store) FindDependsOn(u identifier.UUID) ([]identifier.UUID, error) {
	ub, _ := u.MarshalBinary()
	rows, err := s.conn().Query("SELECT uuid FROM deps WHERE dep_uuid = ? UNION SELECT uuid FROM temp_deps WHERE dep_uuid = ?", ub, ub)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// canonicalDCTPair orders a, b so a symmetric direct leg (a->b is the
// same leg as b->a) is always keyed the same way regardless of which
// endpoint the caller resolved first.
func canonicalDCTPair(a, b identifier.UUID) (identifier.UUID, identifier.UUID) {
	ab, _ := a.MarshalBinary()
	bb, _ := b.MarshalBinary()
	if bytes.Compare(ab, bb) > 0 {
		return b, a
	}
	return a, b
}

// IndexDCTLeg records (or refreshes) the great-circle distance of a
// direct leg between two points, a write-through cache so repeated
// flight-plan resolutions over the same city pair skip recomputing it.
func (s *Store) IndexDCTLeg(start, end identifier.UUID, limitNM float64) error {
	start, end = canonicalDCTPair(start, end)
	startb, _ := start.MarshalBinary()
	endb, _ := end.MarshalBinary()
	_, err := s.conn().Exec(
		"INSERT INTO dct_legs(start_uuid, end_uuid, limit_nm) VALUES(?,?,?) "+
			"ON CONFLICT(start_uuid, end_uuid) DO UPDATE SET limit_nm=excluded.limit_nm",
		startb, endb, limitNM)
	return err
}

// FindDCTLeg returns the cached distance for the direct leg between
// start and end, if one has been indexed.
func (s *Store) FindDCTLeg(start, end identifier.UUID) (limitNM float64, ok bool, err error) {
	start, end = canonicalDCTPair(start, end)
	startb, _ := start.MarshalBinary()
	endb, _ := end.MarshalBinary()
	row := s.conn().QueryRow("SELECT limit_nm FROM dct_legs WHERE start_uuid = ? AND end_uuid = ?", startb, endb)
	if err := row.Scan(&limitNM); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return limitNM, true, nil
}

// IndexAUP records an airspace's activation status over [startTime,
// endTime), ingestion's job for the ADR-extension AirspaceActivation
// element.
func (s *Store) IndexAUP(u identifier.UUID, startTime, endTime int64, status int32) error {
	ub, _ := u.MarshalBinary()
	_, err := s.conn().Exec(
		"INSERT INTO aup(uuid, start_time, end_time, status) VALUES(?,?,?,?) "+
			"ON CONFLICT(uuid, start_time) DO UPDATE SET end_time=excluded.end_time, status=excluded.status",
		ub, startTime, endTime, status)
	return err
}

// FindAUP returns the activation status recorded for airspace u whose
// window covers atTime, and whether any such row exists.
func (s *Store) FindAUP(u identifier.UUID, atTime int64) (status int32, ok bool, err error) {
	ub, _ := u.MarshalBinary()
	row := s.conn().QueryRow(
		"SELECT status FROM aup WHERE uuid = ? AND start_time <= ? AND end_time > ? ORDER BY start_time DESC LIMIT 1",
		ub, atTime, atTime)
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return status, true, nil
}

// FindByTag returns every main-partition UUID stored under tag, used by
// the restriction evaluator to enumerate all flight_restriction objects
// before filtering by time window.
func (s *Store) FindByTag(tag tslice.Tag) ([]identifier.UUID, error) {
	rows, err := s.conn().Query("SELECT uuid FROM objects WHERE tag = ?", int(tag))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// FindModifiedAfter returns every main-partition UUID with Modified
// strictly greater than since, for incremental snapshot/export.
func (s *Store) FindModifiedAfter(since int64) ([]identifier.UUID, error) {
	rows, err := s.conn().Query("SELECT uuid FROM objects WHERE modified > ?", since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// AllTempUUIDs returns every object UUID in the temp partition.
func (s *Store) AllTempUUIDs() ([]identifier.UUID, error) {
	rows, err := s.conn().Query("SELECT uuid FROM temp_objects")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// PromoteTemp copies a temp object into the main partition as a
// perm_delta/baseline and deletes it from temp, called once a recompute
// pass confirms the edit is safe to commit.
func (s *Store) PromoteTemp(u identifier.UUID) error {
	ub, _ := u.MarshalBinary()
	_, err := s.conn().Exec(
		`INSERT INTO objects(uuid, tag, modified, dirty, data)
		 SELECT uuid, tag, modified, dirty, data FROM temp_objects WHERE uuid = ?
		 ON CONFLICT(uuid) DO UPDATE SET tag=excluded.tag, modified=excluded.modified, dirty=excluded.dirty, data=excluded.data`, ub)
	if err != nil {
		return err
	}
	_, err = s.conn().Exec("DELETE FROM temp_objects WHERE uuid = ?", ub)
	if err != nil {
		return err
	}
	_, err = s.conn().Exec("INSERT OR IGNORE INTO deps SELECT * FROM temp_deps WHERE uuid = ?", ub)
	if err != nil {
		return err
	}
	_, err = s.conn().Exec("DELETE FROM temp_deps WHERE uuid = ?", ub)
	return err
}

// DiscardTemp deletes a temp-partition object and its temp dependency
// edges without promoting it.
func (s *Store) DiscardTemp(u identifier.UUID) error {
	ub, _ := u.MarshalBinary()
	if _, err := s.conn().Exec("DELETE FROM temp_objects WHERE uuid = ?", ub); err != nil {
		return err
	}
	_, err := s.conn().Exec("DELETE FROM temp_deps WHERE uuid = ?", ub)
	return err
}

// FlushCache evicts every unreferenced (refs == 0) cache entry older
// than cutoff, honouring an LRU order within that set. Called by the
// recompute engine periodically, on both a processed-object count and a
// time cutoff.
func (s *Store) FlushCache(cutoff time.Time) (evicted int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for u, e := range s.cache {
		if e.refs == 0 && e.lastUsed.Before(cutoff) {
			delete(s.cache, u)
			evicted++
		}
	}
	return evicted
}

// evictIfNeeded enforces cacheCap by evicting the least-recently-used
// unreferenced entries once the cache grows past capacity.
func (s *Store) evictIfNeeded() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if len(s.cache) <= s.cacheCap {
		return
	}
	type kv struct {
		u identifier.UUID
		e *cacheEntry
	}
	var candidates []kv
	for u, e := range s.cache {
		if e.refs == 0 {
			candidates = append(candidates, kv{u, e})
		}
	}
	for len(s.cache) > s.cacheCap && len(candidates) > 0 {
		oldestIdx := 0
		for i, c := range candidates {
			if c.e.lastUsed.Before(candidates[oldestIdx].e.lastUsed) {
				oldestIdx = i
			}
		}
		delete(s.cache, candidates[oldestIdx].u)
		candidates = append(candidates[:oldestIdx], candidates[oldestIdx+1:]...)
	}
}

func scanUUIDs(rows *sql.Rows) ([]identifier.UUID, error) {
	var out []identifier.UUID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var u identifier.UUID
		if err := u.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WarnOverlaps runs OverlapConflict across every slice of obj and
// records a warning rather than failing the ingest/recompute pass:
// structural problems are logged, not fatal, unless the object cannot
// be represented at all.
func WarnOverlaps(el *aerr.ErrorLogger, obj *tslice.Object) {
	if a, b, found := obj.OverlapConflict(); found {
		el.Warnf("object %s: overlapping %s slices [%d,%d) and [%d,%d)",
			obj.UUID, a.Interpretation, a.Start, a.End, b.Start, b.End)
	}
}
