package diskcache

import "testing"

type payload struct {
	Name  string
	Count int
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	want := payload{Name: "LSZH", Count: 3}
	if err := Store("test/payload.cache", want); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var got payload
	if _, err := Retrieve("test/payload.cache", &got); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got != want {
		t.Fatalf("Retrieve = %+v, want %+v", got, want)
	}
}

func TestRetrieveMissingFile(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	var got payload
	if _, err := Retrieve("test/does-not-exist.cache", &got); err == nil {
		t.Fatal("Retrieve on a missing file should return an error")
	}
}

func TestCullRemovesOldestFilesUntilUnderLimit(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	// Each payload encodes to a handful of bytes; three files comfortably
	// exceed a 1-byte budget, forcing Cull to remove all but what fits.
	for i, name := range []string{"a", "b", "c"} {
		if err := Store("cull/"+name, payload{Name: name, Count: i}); err != nil {
			t.Fatalf("Store(%s): %v", name, err)
		}
	}
	if err := Cull(1); err != nil {
		t.Fatalf("Cull: %v", err)
	}

	remaining := 0
	for _, name := range []string{"a", "b", "c"} {
		var got payload
		if _, err := Retrieve("cull/"+name, &got); err == nil {
			remaining++
		}
	}
	if remaining == 3 {
		t.Fatal("Cull(1) should have removed at least one file")
	}
}
