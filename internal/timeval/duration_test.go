package timeval

import "testing"

// Oracle values below are reproduced from the reference implementation's own
// unit test for TimeDuration normalization.
func TestNewDurationNormalizes(t *testing.T) {
	cases := []struct {
		inSecs, inNanos   int64
		wantSecs          int64
		wantNanos         int32
		wantAsSecsF64     float64
	}{
		{23, 1_750_000_000, 24, 750_000_000, 24.75},
		{23, -1_750_000_000, 21, 250_000_000, 21.25},
		{1, -1_750_000_000, 0, -750_000_000, -0.75},
		{-23, -1_750_000_000, -24, -750_000_000, -24.75},
		{1, -917_078_876, 0, 82_921_124, 0.082921124},
	}
	for _, c := range cases {
		got := NewDuration(c.inSecs, c.inNanos)
		if got.Seconds() != c.wantSecs || got.Nanos() != c.wantNanos {
			t.Errorf("NewDuration(%d,%d) = (%d,%d), want (%d,%d)",
				c.inSecs, c.inNanos, got.Seconds(), got.Nanos(), c.wantSecs, c.wantNanos)
		}
		if diff := got.AsSecsF64() - c.wantAsSecsF64; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("NewDuration(%d,%d).AsSecsF64() = %v, want %v", c.inSecs, c.inNanos, got.AsSecsF64(), c.wantAsSecsF64)
		}
	}
}

func TestSignsAlwaysAgree(t *testing.T) {
	for s := int64(-5); s <= 5; s++ {
		for n := int64(-2_500_000_000); n <= 2_500_000_000; n += 250_000_000 {
			d := NewDuration(s, n)
			if d.nanos >= NanosPerSec || d.nanos <= -NanosPerSec {
				t.Fatalf("NewDuration(%d,%d) nanos out of range: %d", s, n, d.nanos)
			}
			if d.seconds > 0 && d.nanos < 0 {
				t.Fatalf("NewDuration(%d,%d) = (%d,%d) signs disagree", s, n, d.seconds, d.nanos)
			}
			if d.seconds < 0 && d.nanos > 0 {
				t.Fatalf("NewDuration(%d,%d) = (%d,%d) signs disagree", s, n, d.seconds, d.nanos)
			}
		}
	}
}

func TestMulDivF64(t *testing.T) {
	d := NewDuration(0, 500_000_000).MulF64(2.5)
	if d.Seconds() != 1 || d.Nanos() != 250_000_000 {
		t.Errorf("MulF64 = (%d,%d), want (1,250000000)", d.Seconds(), d.Nanos())
	}
	d2 := NewDuration(1, 0).DivF64(2.5)
	if d2.Seconds() != 0 || d2.Nanos() != 400_000_000 {
		t.Errorf("DivF64 = (%d,%d), want (0,400000000)", d2.Seconds(), d2.Nanos())
	}
}

func TestToDuration(t *testing.T) {
	pos := NewDuration(23, 750_000_000)
	if d, ok := pos.ToDuration(); !ok || d.Seconds() != 23.75 {
		t.Errorf("ToDuration() on positive = (%v,%v), want (23.75s,true)", d, ok)
	}
	neg := NewDuration(-23, 750_000_000)
	if _, ok := neg.ToDuration(); ok {
		t.Errorf("ToDuration() on negative duration should be (_, false)")
	}
}

func TestTimeValueAddSubRoundTrip(t *testing.T) {
	a := New(100, 500_000_000)
	b := New(90, 250_000_000)
	d := a.Sub(b)
	if d.Seconds() != 10 || d.Nanos() != 250_000_000 {
		t.Fatalf("a.Sub(b) = (%d,%d), want (10,250000000)", d.Seconds(), d.Nanos())
	}
	if got := b.Add(d); !got.Equal(a) {
		t.Fatalf("b.Add(a.Sub(b)) = %v, want %v", got, a)
	}
}
