package inmem

import (
	"errors"
	"testing"
)

func TestClient(t *testing.T) {
	c := NewClient()

	if err := c.Get("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(missing) = %v, want ErrKeyNotFound", err)
	}

	if err := c.Put("uuid-1", []byte("token")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Get("uuid-1"); err != nil {
		t.Errorf("Get after Put: %v", err)
	}

	if err := c.Delete("uuid-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Get("uuid-1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after Delete = %v, want ErrKeyNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := c.Delete("uuid-1"); err != nil {
		t.Errorf("Delete absent key: %v", err)
	}
}
