package lcg

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"testing"
)

// Reference draws for seed 12345, recorded so a refactor of the
// generator can never silently change the stream.
var seed12345Head = []uint32{
	87628868, 71072467, 2332836374, 2726892157, 3908547000,
	483019191, 2129828778, 2355140353, 2560230508, 3364893915,
}

// MD5 over the first 1000 draws (little-endian uint32s) for seed 12345.
const seed12345Digest = "2c706bc6105a2330b47eed6e4e5c5a18"

func TestKnownSequence(t *testing.T) {
	r := New(12345)
	for i, want := range seed12345Head {
		if got := r.NextUint32(); got != want {
			t.Fatalf("draw %d = %d, want %d", i, got, want)
		}
	}
}

func TestThousandDrawDigest(t *testing.T) {
	r := New(12345)
	h := md5.New()
	var buf [4]byte
	for i := 0; i < 1000; i++ {
		binary.LittleEndian.PutUint32(buf[:], r.NextUint32())
		h.Write(buf[:])
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != seed12345Digest {
		t.Errorf("digest = %s, want %s", got, seed12345Digest)
	}
}

func TestSameSeedSameStream(t *testing.T) {
	a := New(777)
	b := New(777)
	for i := 0; i < 1000; i++ {
		if a.NextUint32() != b.NextUint32() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestRangeBounds(t *testing.T) {
	r := New(99)
	for i := 0; i < 10000; i++ {
		v := r.Range(10, 20)
		if v < 10 || v > 20 {
			t.Fatalf("Range(10,20) = %d out of bounds", v)
		}
	}

	if got := r.Range(5, 5); got != 5 {
		t.Errorf("degenerate range = %d, want 5", got)
	}
}

func TestShuffleDeterministic(t *testing.T) {
	want := []int{0, 4, 6, 5, 2, 8, 1, 9, 7, 3}

	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}
	New(42).Shuffle(items)

	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("shuffle = %v, want %v", items, want)
		}
	}

	// Same seed, same permutation.
	other := make([]int, 10)
	for i := range other {
		other[i] = i
	}
	New(42).Shuffle(other)
	for i := range items {
		if items[i] != other[i] {
			t.Fatal("equal seeds produced different permutations")
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	r := New(555)
	for i := 0; i < 17; i++ {
		r.NextUint32()
	}
	saved := r.State()
	a := r.NextUint32()

	r.SetState(saved)
	if b := r.NextUint32(); b != a {
		t.Errorf("restored state drew %d, want %d", b, a)
	}
}

func TestZeroSeedRemapped(t *testing.T) {
	if New(0).State() != 1 {
		t.Error("zero seed should map to state 1")
	}
}
