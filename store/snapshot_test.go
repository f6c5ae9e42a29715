package store

import (
	"bytes"
	"os"
	"testing"

	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/tslice"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

type memWriteSeeker struct {
	buf bytes.Buffer
	pos int64
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if int(m.pos) < m.buf.Len() {
		// Overwrite in place (the header/directory backfill seeks behind
		// the already-written data region).
		b := m.buf.Bytes()
		n := copy(b[m.pos:], p)
		m.pos += int64(n)
		if n < len(p) {
			m.buf.Write(p[n:])
			m.pos += int64(len(p) - n)
		}
		return len(p), nil
	}
	n, err := m.buf.Write(p)
	m.pos += int64(n)
	return n, err
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		m.pos = offset
	case 1:
		m.pos += offset
	case 2:
		m.pos = int64(m.buf.Len()) + offset
	}
	for int64(m.buf.Len()) < m.pos {
		m.buf.WriteByte(0)
	}
	return m.pos, nil
}

func TestSnapshotDirEntrySizeMatchesLayout(t *testing.T) {
	// uuid(16) + bbox i32[4](16) + min/max/modified u64(24) + type u8 +
	// reserved u8[3](4, implicit padding via offsets below) + data_offs
	// u64(8) + data_size u32(4); the literal field offsets used by both
	// WriteSnapshot and OpenSnapshot must agree with the declared size.
	if snapshotDirEntrySize != 72 {
		t.Fatalf("snapshotDirEntrySize is %d, but the encode/decode offsets assume 72", snapshotDirEntrySize)
	}
}

func TestSnapshotWriteAndLoadRoundTrip(t *testing.T) {
	a := &tslice.Object{UUID: identifier.Random()}
	a.AddTimeSlice(tslice.TimeSlice{
		Start: -1 << 40, End: 1 << 40, Modified: 7,
		Body: &tslice.Airport{PointCommon: tslice.PointCommon{Ident: "LFPG", Location: geo.NewPointDeg(2.55, 49.01)}},
	})
	b := &tslice.Object{UUID: identifier.Random()}
	b.AddTimeSlice(tslice.TimeSlice{
		Start: -1 << 40, End: 1 << 40, Modified: 3,
		Body: &tslice.Navaid{PointCommon: tslice.PointCommon{Ident: "ABC", Location: geo.NewPointDeg(3.0, 50.0)}},
	})
	objs := map[identifier.UUID]*tslice.Object{a.UUID: a, b.UUID: b}
	load := func(u identifier.UUID) (*tslice.Object, error) { return objs[u], nil }

	var mw memWriteSeeker
	if err := WriteSnapshot(&mw, []identifier.UUID{a.UUID, b.UUID}, load); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	tmp := t.TempDir() + "/snap.bin"
	if err := writeFile(tmp, mw.buf.Bytes()); err != nil {
		t.Fatalf("write temp snapshot: %v", err)
	}

	snap, err := OpenSnapshot(tmp)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	defer snap.Close()

	if snap.Count() != 2 {
		t.Fatalf("expected 2 directory entries, got %d", snap.Count())
	}

	loaded, err := snap.Load(a.UUID)
	if err != nil || loaded == nil {
		t.Fatalf("Load(a): %v", err)
	}
	body, ok := loaded.At(0)
	if !ok || body.(*tslice.Airport).Ident != "LFPG" {
		t.Fatalf("round-tripped object mismatch: %+v", body)
	}

	if _, err := snap.Load(identifier.Random()); err != nil {
		t.Fatalf("Load of an absent UUID should not error, got %v", err)
	}
	miss, err := snap.Load(identifier.Random())
	if err != nil || miss != nil {
		t.Fatalf("Load of an absent UUID should return (nil, nil), got (%v, %v)", miss, err)
	}
}

func TestSnapshotFindByBBox(t *testing.T) {
	a := &tslice.Object{UUID: identifier.Random()}
	a.AddTimeSlice(tslice.TimeSlice{Start: -1 << 40, End: 1 << 40, Body: &tslice.Airport{PointCommon: tslice.PointCommon{Ident: "A", Location: geo.NewPointDeg(2, 48)}}})
	b := &tslice.Object{UUID: identifier.Random()}
	b.AddTimeSlice(tslice.TimeSlice{Start: -1 << 40, End: 1 << 40, Body: &tslice.Airport{PointCommon: tslice.PointCommon{Ident: "B", Location: geo.NewPointDeg(100, 10)}}})
	objs := map[identifier.UUID]*tslice.Object{a.UUID: a, b.UUID: b}
	load := func(u identifier.UUID) (*tslice.Object, error) { return objs[u], nil }

	var mw memWriteSeeker
	if err := WriteSnapshot(&mw, []identifier.UUID{a.UUID, b.UUID}, load); err != nil {
		t.Fatal(err)
	}
	tmp := t.TempDir() + "/snap2.bin"
	if err := writeFile(tmp, mw.buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	snap, err := OpenSnapshot(tmp)
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Close()

	found := snap.FindByBBox(geo.Rect{SW: geo.NewPointDeg(1, 47), NE: geo.NewPointDeg(4, 50)})
	if len(found) != 1 || found[0] != a.UUID {
		t.Fatalf("expected only the overlapping object, got %v", found)
	}
}
