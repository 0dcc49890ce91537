package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStoreKeysAreMonotonic(t *testing.T) {
	s := NewStore()
	k1, _ := s.Add(16)
	k2, _ := s.Add(16)
	k3, _ := s.Add(16)
	require.Less(t, k1, k2)
	require.Less(t, k2, k3)
}

func TestStoreSnapshotReflectsFinished(t *testing.T) {
	s := NewStore()
	k1, _ := s.Add(16)
	k2, _ := s.Add(16)
	s.MarkFinished(k1)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	byKey := make(map[Key]Snapshot, len(snap))
	for _, e := range snap {
		byKey[e.Key] = e
	}
	require.True(t, byKey[k1].Finished)
	require.False(t, byKey[k2].Finished)
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	s := NewStore()
	k, _ := s.Add(16)
	s.MarkFinished(k)
	s.Remove(k)
	s.Remove(k)
	require.Nil(t, s.Get(k))
}

func TestStorePushWakesWaiter(t *testing.T) {
	s := NewStore()
	_, buf := s.Add(64)

	woke := make(chan struct{})
	go func() {
		s.Wait()
		close(woke)
	}()
	// Give the waiter a moment to park before producing.
	time.Sleep(10 * time.Millisecond)
	buf.Push([]float32{1, 2, 3})

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("store waiter never woke on a buffer push")
	}
}

func TestStoreAbortAllUnblocksWriters(t *testing.T) {
	s := NewStore()
	_, buf := s.Add(4)
	require.True(t, buf.Push([]float32{1, 2, 3, 4}))

	done := make(chan bool)
	go func() {
		done <- buf.Push([]float32{5, 6}) // blocks on full buffer
	}()
	time.Sleep(10 * time.Millisecond)
	s.AbortAll()

	select {
	case ok := <-done:
		require.False(t, ok, "aborted push reports failure")
	case <-time.After(2 * time.Second):
		t.Fatal("abort did not unblock the writer")
	}
}

// No sample is ever dropped or reordered while abort stays false, for any
// interleaving of writes and reads within capacity.
func TestBufferConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(8, 256).Draw(t, "cap")
		b := NewBuffer(capacity)

		var pushed, popped []float32
		next := float32(0)

		ops := rapid.IntRange(1, 64).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "write") {
				n := rapid.IntRange(1, capacity).Draw(t, "n")
				batch := make([]float32, n)
				for j := range batch {
					batch[j] = next
					next++
				}
				// Keep within free space so the single-threaded test never blocks.
				if b.Free() >= n {
					require.True(t, b.Push(batch))
					pushed = append(pushed, batch...)
				}
			} else {
				out := make([]float32, capacity)
				n := b.Pop(out, rapid.IntRange(1, capacity).Draw(t, "pop"))
				popped = append(popped, out[:n]...)
			}
			require.LessOrEqual(t, b.Len(), capacity)
		}

		// Drain the remainder and verify FIFO order end to end.
		out := make([]float32, capacity)
		for {
			n := b.Pop(out, capacity)
			if n == 0 {
				break
			}
			popped = append(popped, out[:n]...)
		}
		require.Equal(t, pushed, popped)
	})
}
