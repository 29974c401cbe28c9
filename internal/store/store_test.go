// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	type doc struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}

	if err := s.Put("k1", doc{Name: "hello", N: 42}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got doc
	if err := s.Get("k1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "hello" || got.N != 42 {
		t.Errorf("Get() = %+v, want {hello 42}", got)
	}
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)

	var out string
	if err := s.Get("missing", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesValue(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("k1", "value"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var out string
	if err := s.Get("k1", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}

	// Deleting an already-missing key is not an error.
	if err := s.Delete("never-existed"); err != nil {
		t.Errorf("Delete(never-existed) = %v, want nil", err)
	}
}

func TestListByPrefix(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"pref:a", "pref:b", "other:c"} {
		if err := s.Put(k, "v"); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	keys, err := s.ListByPrefix("pref:")
	if err != nil {
		t.Fatalf("ListByPrefix: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("ListByPrefix() = %v, want 2 keys", keys)
	}
}
