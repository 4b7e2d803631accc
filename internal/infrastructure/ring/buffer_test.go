// ABOUTME: Tests for the circular sample buffer
// ABOUTME: Covers full/empty edges, overwrite mode, wraparound, and block reads
package ring

import (
	"errors"
	"testing"
)

func mustNew(t *testing.T, capacity int, policy Policy) *Buffer {
	t.Helper()
	b, err := New(capacity, policy)
	if err != nil {
		t.Fatalf("New(%d, %s) failed: %v", capacity, policy, err)
	}
	return b
}

type cursors struct {
	r, w int
	full bool
}

func snapshot(b *Buffer) cursors {
	return cursors{r: b.ReadPos(), w: b.WritePos(), full: b.Full()}
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1, -64} {
		if _, err := New(c, Exact); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d): expected ErrInvalidCapacity, got %v", c, err)
		}
		if _, err := New(c, PowerOfTwo); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d) pow2: expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestNew_PowerOfTwoRounding(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 129: 256}
	for req, want := range cases {
		b := mustNew(t, req, PowerOfTwo)
		if b.Capacity() != want {
			t.Errorf("request %d: expected capacity %d, got %d", req, want, b.Capacity())
		}
		if b.RequestedCapacity() != req {
			t.Errorf("request %d: expected requested %d, got %d", req, req, b.RequestedCapacity())
		}
	}
}

func TestNew_ExactCapacity(t *testing.T) {
	b := mustNew(t, 5, Exact)
	if b.Capacity() != 5 {
		t.Errorf("expected capacity 5, got %d", b.Capacity())
	}
	if b.State() != Empty {
		t.Errorf("new buffer should be empty, got %s", b.State())
	}
	if b.Overwrite() {
		t.Error("overwrite should start off")
	}
}

func TestPush_FillThenDrain(t *testing.T) {
	b := mustNew(t, 4, Exact)

	for i := 1; i <= 4; i++ {
		if !b.Push(float32(i)) {
			t.Fatalf("push %d failed", i)
		}
	}
	if !b.Full() || b.State() != Full {
		t.Fatalf("expected full buffer, got %s", b.State())
	}

	before := snapshot(b)
	if b.Push(5) {
		t.Fatal("push into full buffer should fail")
	}
	if after := snapshot(b); after != before {
		t.Errorf("rejected push changed state: %+v -> %+v", before, after)
	}

	for i := 1; i <= 4; i++ {
		v, ok := b.Next()
		if !ok {
			t.Fatalf("next %d returned none", i)
		}
		if v != float32(i) {
			t.Errorf("next %d: expected %d, got %v", i, i, v)
		}
	}

	if b.State() != Empty {
		t.Errorf("expected empty after drain, got %s", b.State())
	}
	if _, ok := b.Next(); ok {
		t.Error("next on empty buffer should return none")
	}
}

func TestPush_RoundTripAcrossWraps(t *testing.T) {
	for _, policy := range []Policy{Exact, PowerOfTwo} {
		b := mustNew(t, 7, policy)
		next := float32(0)
		want := float32(0)

		// Offset the cursors by a different amount on each pass.
		for pass := 1; pass <= 3*b.Capacity(); pass++ {
			k := pass % (b.Capacity() + 1)
			for i := 0; i < k; i++ {
				if !b.Push(next) {
					t.Fatalf("%s pass %d: push %d failed with %d buffered", policy, pass, i, b.Len())
				}
				next++
			}
			if b.Len() != k {
				t.Fatalf("%s pass %d: expected len %d, got %d", policy, pass, k, b.Len())
			}
			for i := 0; i < k; i++ {
				v, ok := b.Next()
				if !ok || v != want {
					t.Fatalf("%s pass %d: expected %v, got %v (ok=%v)", policy, pass, want, v, ok)
				}
				want++
			}
		}
	}
}

func TestNext_ClearsFull(t *testing.T) {
	b := mustNew(t, 2, Exact)
	b.Push(1)
	b.Push(2)

	if _, ok := b.Next(); !ok {
		t.Fatal("next on full buffer returned none")
	}
	if b.Full() {
		t.Error("full flag should clear after a read")
	}
	if !b.Push(3) {
		t.Error("push after read should succeed")
	}
}

func TestPushBlock_PartialCommit(t *testing.T) {
	b := mustNew(t, 4, Exact)

	if b.PushBlock([]float32{1, 2, 3, 4, 5, 6}) {
		t.Fatal("oversized block should be rejected")
	}
	if b.Len() != 4 {
		t.Fatalf("expected the first 4 samples committed, got %d", b.Len())
	}

	for i := 1; i <= 4; i++ {
		if v, _ := b.Next(); v != float32(i) {
			t.Errorf("expected %d, got %v", i, v)
		}
	}
}

func TestPushBlock_RejectedWhenFull(t *testing.T) {
	b := mustNew(t, 2, Exact)
	b.PushBlock([]float32{1, 2})

	before := snapshot(b)
	if b.PushBlock([]float32{3}) {
		t.Fatal("push block into full buffer should fail")
	}
	if after := snapshot(b); after != before {
		t.Errorf("rejected block changed state: %+v -> %+v", before, after)
	}
}

func TestPushBlock_Wraparound(t *testing.T) {
	b := mustNew(t, 4, Exact)
	b.PushBlock([]float32{0, 0, 0})
	for i := 0; i < 3; i++ {
		b.Next()
	}

	if !b.PushBlock([]float32{10, 11, 12}) {
		t.Fatal("push block failed")
	}

	// Written across the physical end: slots 3, 0, 1.
	for slot, want := range map[int]float32{3: 10, 0: 11, 1: 12} {
		if v, _ := b.Get(slot); v != want {
			t.Errorf("slot %d: expected %v, got %v", slot, want, v)
		}
	}

	got, ok := b.NextBlock(3)
	if !ok {
		t.Fatal("next block returned none")
	}
	for i, want := range []float32{10, 11, 12} {
		if got[i] != want {
			t.Errorf("block[%d]: expected %v, got %v", i, want, got[i])
		}
	}
}

func TestOverwrite_NeverRejects(t *testing.T) {
	b := mustNew(t, 4, Exact)
	b.SetOverwrite(true)

	for i := 1; i <= 5; i++ {
		if !b.Push(float32(i)) {
			t.Fatalf("push %d failed in overwrite mode", i)
		}
	}
	if b.Full() {
		t.Error("overwrite mode should never report full")
	}

	// One slot of lag: the newest Capacity()-1 samples survive.
	var got []float32
	for {
		v, ok := b.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}

	want := []float32{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("drain[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestOverwrite_NotRetroactive(t *testing.T) {
	b := mustNew(t, 2, Exact)
	b.Push(1)
	b.Push(2)

	b.SetOverwrite(true)
	if b.Push(3) {
		t.Error("enabling overwrite should not unblock an already full buffer")
	}

	b.Next()
	if !b.Push(3) || !b.Push(4) {
		t.Fatal("pushes after read should succeed in overwrite mode")
	}
	if b.Full() {
		t.Error("overwrite push should not set full")
	}
	if v, _ := b.Next(); v != 4 {
		t.Errorf("expected 4, got %v", v)
	}
}

func TestGet_DoesNotMutate(t *testing.T) {
	b := mustNew(t, 5, PowerOfTwo)
	b.PushBlock([]float32{1, 2, 3, 4, 5, 6, 7, 8})

	before := snapshot(b)
	for i := -1; i <= b.Capacity(); i++ {
		b.Get(i)
	}
	if after := snapshot(b); after != before {
		t.Errorf("get changed state: %+v -> %+v", before, after)
	}

	// Index past the request but inside the rounded storage is valid.
	if v, ok := b.Get(6); !ok || v != 7 {
		t.Errorf("expected slot 6 = 7, got %v (ok=%v)", v, ok)
	}
	if _, ok := b.Get(8); ok {
		t.Error("get past capacity should return none")
	}
	if _, ok := b.Get(-1); ok {
		t.Error("negative index should return none")
	}
}

func TestNextBlock_PowerOfTwoScenario(t *testing.T) {
	b := mustNew(t, 5, PowerOfTwo)
	if b.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", b.Capacity())
	}

	b.PushBlock([]float32{1, 2, 3, 4, 5, 6})
	b.Next()
	b.Next()

	got, ok := b.NextBlock(4)
	if !ok {
		t.Fatal("next block returned none")
	}
	for i, want := range []float32{3, 4, 5, 6} {
		if got[i] != want {
			t.Errorf("block[%d]: expected %v, got %v", i, want, got[i])
		}
	}
	if b.ReadPos() != 6 || b.State() != Empty {
		t.Errorf("expected empty at read pos 6, got %s at %d", b.State(), b.ReadPos())
	}
}

func TestNextBlock_RejectsCrossingWriteCursor(t *testing.T) {
	b := mustNew(t, 5, PowerOfTwo)
	b.PushBlock([]float32{1, 2, 3, 4, 5, 6})
	b.Next()
	b.Next()

	before := snapshot(b)
	if _, ok := b.NextBlock(5); ok {
		t.Fatal("block reaching past the write cursor should be rejected")
	}
	if after := snapshot(b); after != before {
		t.Errorf("rejected block changed state: %+v -> %+v", before, after)
	}
}

func TestNextBlock_Wraparound(t *testing.T) {
	b := mustNew(t, 5, Exact)
	b.PushBlock([]float32{1, 2, 3, 4})
	b.Next()
	b.Next()
	b.Next()
	b.PushBlock([]float32{5, 6, 7})

	got, ok := b.NextBlock(4)
	if !ok {
		t.Fatal("wrapping block returned none")
	}
	for i, want := range []float32{4, 5, 6, 7} {
		if got[i] != want {
			t.Errorf("block[%d]: expected %v, got %v", i, want, got[i])
		}
	}
	if b.ReadPos() != 2 {
		t.Errorf("expected read pos 2, got %d", b.ReadPos())
	}
}

func TestNextBlock_WraparoundPowerOfTwo(t *testing.T) {
	b := mustNew(t, 3, PowerOfTwo)
	b.PushBlock([]float32{1, 2, 3})
	b.Next()
	b.Next()
	b.Next()
	b.PushBlock([]float32{4, 5, 6})

	// r=3, w=2: the block spans slot 3 then slots 0 and 1.
	got, ok := b.NextBlock(3)
	if !ok {
		t.Fatal("wrapping block returned none")
	}
	for i, want := range []float32{4, 5, 6} {
		if got[i] != want {
			t.Errorf("block[%d]: expected %v, got %v", i, want, got[i])
		}
	}
	if b.ReadPos() != 2 || b.State() != Empty {
		t.Errorf("expected empty at read pos 2, got %s at %d", b.State(), b.ReadPos())
	}
}

func TestLenAndFree(t *testing.T) {
	b := mustNew(t, 4, Exact)
	if b.Len() != 0 || b.Free() != 4 {
		t.Fatalf("new buffer: expected len 0 free 4, got %d and %d", b.Len(), b.Free())
	}

	b.PushBlock([]float32{1, 2, 3})
	b.Next()
	b.Next()
	b.PushBlock([]float32{4, 5})

	// Cursors have wrapped: r=2, w=1.
	if b.Len() != 3 || b.Free() != 1 {
		t.Errorf("expected len 3 free 1, got %d and %d", b.Len(), b.Free())
	}

	b.Push(6)
	if b.Len() != 4 || b.Free() != 0 {
		t.Errorf("full buffer: expected len 4 free 0, got %d and %d", b.Len(), b.Free())
	}
}

func TestStorageSize(t *testing.T) {
	if n := StorageSize(5, PowerOfTwo); n != 8 {
		t.Errorf("pow2: expected 8, got %d", n)
	}
	if n := StorageSize(5, Exact); n != 5 {
		t.Errorf("exact: expected 5, got %d", n)
	}
}

func TestNextBlock_EmptyAndBounds(t *testing.T) {
	b := mustNew(t, 4, Exact)

	if _, ok := b.NextBlock(1); ok {
		t.Error("next block on empty buffer should return none")
	}

	b.PushBlock([]float32{1, 2})
	for _, n := range []int{0, -1, 5} {
		if _, ok := b.NextBlock(n); ok {
			t.Errorf("next block(%d) should return none", n)
		}
	}
	if b.Len() != 2 {
		t.Errorf("rejected blocks should not consume, got len %d", b.Len())
	}
}

func TestNextBlock_FullBuffer(t *testing.T) {
	b := mustNew(t, 4, Exact)
	b.PushBlock([]float32{1, 2, 3, 4})

	got, ok := b.NextBlock(4)
	if !ok {
		t.Fatal("full buffer should yield a whole-capacity block")
	}
	if got[0] != 1 || got[3] != 4 {
		t.Errorf("unexpected block %v", got)
	}
	if b.Full() || b.State() != Empty {
		t.Errorf("expected empty after draining, got %s", b.State())
	}
}

func TestNextBlockInto(t *testing.T) {
	b := mustNew(t, 8, PowerOfTwo)
	dst := make([]float32, 3)

	if b.NextBlockInto(dst) {
		t.Fatal("expected none on empty buffer")
	}

	b.PushBlock([]float32{9, 8, 7, 6})
	if !b.NextBlockInto(dst) {
		t.Fatal("expected a block")
	}
	if dst[0] != 9 || dst[1] != 8 || dst[2] != 7 {
		t.Errorf("unexpected block %v", dst)
	}
	if b.Len() != 1 {
		t.Errorf("expected 1 remaining, got %d", b.Len())
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{PowerOfTwo, Exact} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePolicy("mod"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
