package objcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/chazu/xmr/compiler"
	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
	"github.com/chazu/xmr/vm"
)

const counter = `
integer n;
default {
    touch_start(integer k) {
        n += k;
        llOwnerSay((string)n);
    }
}
`

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCompileCaches(t *testing.T) {
	s := openTemp(t)
	tables := compiler.NewTables()

	first, hit, err := s.Compile(counter, tables)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if hit {
		t.Error("first compile reported a cache hit")
	}

	second, hit, err := s.Compile(counter, tables)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !hit {
		t.Error("second compile missed the cache")
	}
	if second.CompileID != first.CompileID {
		t.Errorf("cached CompileID = %s, want %s", second.CompileID, first.CompileID)
	}
	if second.SourceHash != first.SourceHash {
		t.Errorf("cached SourceHash = %x, want %x", second.SourceHash, first.SourceHash)
	}

	_, hit, err = s.Compile(counter+"\n", tables)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("changed source hit the cache")
	}
}

func TestCompileReportsDiagnostics(t *testing.T) {
	s := openTemp(t)
	_, _, err := s.Compile("default { state_entry() { x = 1; } }", compiler.NewTables())
	var diags compiler.Diagnostics
	if !errors.As(err, &diags) || len(diags) == 0 {
		t.Fatalf("Compile error = %v, want diagnostics", err)
	}
	if _, err := s.Object(0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Object(0) = %v, want ErrNotFound", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTemp(t)
	obj, _, err := s.Compile(counter, compiler.NewTables())
	if err != nil {
		t.Fatal(err)
	}
	prog, err := objcode.Materialize(obj)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	in := vm.NewInstance(prog, vm.DefaultConfig())
	if err := in.RunUntilIdle(ctx); err != nil {
		t.Fatal(err)
	}
	touchStart, _ := lsl.LookupEvent("touch_start")
	if err := in.RunEvent(ctx, touchStart, lsl.Int(5)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot(in); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	ids, err := s.Snapshots(prog.CompileID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != in.ID {
		t.Errorf("Snapshots() = %v, want [%s]", ids, in.ID)
	}

	again, err := s.LoadSnapshot(in.ID, prog, vm.DefaultConfig())
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if got, _ := again.Global("n"); got.I != 5 {
		t.Errorf("restored n = %d, want 5", got.I)
	}

	if err := s.DeleteSnapshot(in.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadSnapshot(in.ID, prog, vm.DefaultConfig()); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadSnapshot after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteSnapshot(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteSnapshot of unknown id = %v, want ErrNotFound", err)
	}
}

func TestPrune(t *testing.T) {
	s := openTemp(t)
	tables := compiler.NewTables()
	keep, _, err := s.Compile(counter, tables)
	if err != nil {
		t.Fatal(err)
	}
	drop, _, err := s.Compile("default { state_entry() {} }", tables)
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune([]uuid.UUID{keep.CompileID})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d objects, want 1", n)
	}
	if _, err := s.Object(drop.SourceHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned object lookup = %v, want ErrNotFound", err)
	}
	if _, err := s.Object(keep.SourceHash); err != nil {
		t.Errorf("kept object lookup = %v", err)
	}
}

func TestCompileReplacesStaleEntry(t *testing.T) {
	s := openTemp(t)
	tables := compiler.NewTables()
	obj, _, err := s.Compile(counter, tables)
	if err != nil {
		t.Fatal(err)
	}
	data, err := obj.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	other := "default { state_entry() { llOwnerSay(\"hi\"); } }"
	otherHash := xxh3.HashString(other)
	for _, row := range [][]byte{data, []byte("garbage")} {
		if _, err := s.db.Exec("INSERT OR REPLACE INTO objects (hash, compile_id, data) VALUES (?, ?, ?)",
			hashKey(otherHash), obj.CompileID.String(), row); err != nil {
			t.Fatal(err)
		}

		got, hit, err := s.Compile(other, tables)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if hit {
			t.Error("stale entry reported as a cache hit")
		}
		if got.SourceHash != otherHash {
			t.Errorf("SourceHash = %x, want %x", got.SourceHash, otherHash)
		}
		if _, hit, _ := s.Compile(other, tables); !hit {
			t.Error("recompiled entry missed the cache")
		}
	}
}
