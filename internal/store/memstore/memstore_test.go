package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/discochess/gamereview/internal/store"
)

func TestStore_CopiesData(t *testing.T) {
	s := New()
	ctx := context.Background()

	data := []byte("abc")
	if err := s.WriteShard(ctx, 3, data); err != nil {
		t.Fatalf("WriteShard() error = %v", err)
	}
	data[0] = 'z'

	got, err := s.ReadShard(ctx, 3)
	if err != nil {
		t.Fatalf("ReadShard() error = %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("ReadShard() = %q, want %q", got, "abc")
	}

	got[1] = 'z'
	again, _ := s.ReadShard(ctx, 3)
	if string(again) != "abc" {
		t.Errorf("ReadShard() after caller mutation = %q", again)
	}
}

func TestStore_NotFound(t *testing.T) {
	if _, err := New().ReadShard(context.Background(), 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ReadShard() error = %v, want ErrNotFound", err)
	}
}
