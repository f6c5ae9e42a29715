package store

// schema is the relational layout backing the object store. Objects
// themselves are opaque archive blobs; everything else is an index the
// store maintains so queries don't require deserialising every object.
// temp_objects/temp_deps mirror their main-partition counterparts and
// hold the in-flight edit set a recompute pass folds in or discards
// (the "temp partition").
//
// modernc.org/sqlite is a pure-Go SQLite driver (no cgo); bbox_rtree
// uses SQLite's built-in R*Tree virtual table module for bounding-box
// queries.
const schema = `
CREATE TABLE IF NOT EXISTS objects (
	uuid     BLOB PRIMARY KEY,
	tag      INTEGER NOT NULL,
	modified INTEGER NOT NULL,
	dirty    INTEGER NOT NULL DEFAULT 0,
	data     BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS temp_objects (
	uuid     BLOB PRIMARY KEY,
	tag      INTEGER NOT NULL,
	modified INTEGER NOT NULL,
	dirty    INTEGER NOT NULL DEFAULT 0,
	data     BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS ident (
	ident    TEXT NOT NULL,
	tag      INTEGER NOT NULL,
	uuid     BLOB NOT NULL,
	PRIMARY KEY (ident, tag, uuid)
);

CREATE INDEX IF NOT EXISTS ident_lookup ON ident(ident, tag);

CREATE VIRTUAL TABLE IF NOT EXISTS bbox_rtree USING rtree(
	id,
	min_lon, max_lon,
	min_lat, max_lat
);

-- maps bbox_rtree integer rowids back to object UUIDs, since rtree
-- virtual tables require an INTEGER PRIMARY KEY rowid.
CREATE TABLE IF NOT EXISTS bbox_uuid (
	id   INTEGER PRIMARY KEY,
	uuid BLOB NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS deps (
	uuid      BLOB NOT NULL, -- the object that depends on dep_uuid
	dep_uuid  BLOB NOT NULL,
	PRIMARY KEY (uuid, dep_uuid)
);

CREATE INDEX IF NOT EXISTS deps_reverse ON deps(dep_uuid, uuid);

CREATE TABLE IF NOT EXISTS temp_deps (
	uuid     BLOB NOT NULL,
	dep_uuid BLOB NOT NULL,
	PRIMARY KEY (uuid, dep_uuid)
);

CREATE TABLE IF NOT EXISTS dct_legs (
	start_uuid BLOB NOT NULL,
	end_uuid   BLOB NOT NULL,
	limit_nm   REAL NOT NULL,
	PRIMARY KEY (start_uuid, end_uuid)
);

CREATE TABLE IF NOT EXISTS aup (
	uuid       BLOB NOT NULL,
	start_time INTEGER NOT NULL,
	end_time   INTEGER NOT NULL,
	status     INTEGER NOT NULL,
	PRIMARY KEY (uuid, start_time)
);
`
