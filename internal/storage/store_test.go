package storage

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestInMemoryStore_GetPut(t *testing.T) {
	store := NewInMemoryStore()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	stored := store.Put("docs/a.txt", []byte("hello"))
	if !stored.UpdatedAt.Equal(fixed) {
		t.Errorf("Expected UpdatedAt %v, got %v", fixed, stored.UpdatedAt)
	}

	f, err := store.Get("docs/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(f.Content) != "hello" {
		t.Errorf("Expected 'hello', got '%s'", string(f.Content))
	}
	if f.Path != "docs/a.txt" {
		t.Errorf("Expected path docs/a.txt, got %s", f.Path)
	}
}

func TestInMemoryStore_GetNotFound(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.Get("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore_Overwrite(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("k", []byte("v1"))
	store.Put("k", []byte("v2"))

	f, _ := store.Get("k")
	if string(f.Content) != "v2" {
		t.Errorf("Expected 'v2', got '%s'", string(f.Content))
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 file, got %d", store.Len())
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("k", []byte("v"))

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInMemoryStore_List(t *testing.T) {
	store := NewInMemoryStore()
	for _, p := range []string{"c", "a", "b"} {
		store.Put(p, nil)
	}
	if got := store.List(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("List() = %v", got)
	}
}

func TestInMemoryStore_CopyIsolation(t *testing.T) {
	store := NewInMemoryStore()
	content := []byte("original")
	store.Put("k", content)
	content[0] = 'X'

	f, _ := store.Get("k")
	if string(f.Content) != "original" {
		t.Errorf("Put did not copy input: %s", f.Content)
	}
	f.Content[0] = 'Y'
	again, _ := store.Get("k")
	if string(again.Content) != "original" {
		t.Errorf("Get did not return a copy: %s", again.Content)
	}
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	store := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Put(string(rune('a'+i)), []byte{byte(j)})
				store.Get(string(rune('a' + i)))
				store.List()
			}
		}(i)
	}
	wg.Wait()
	if store.Len() != 10 {
		t.Errorf("Expected 10 files, got %d", store.Len())
	}
}
