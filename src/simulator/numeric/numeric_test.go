package numeric

import (
	"math"
	"testing"

	"NMPulator/src/simulator/codec"
)

func TestMulRoundsAndSaturates(t *testing.T) {
	half := One / 2
	if got := Mul(half, half); got != One/4 {
		t.Fatalf("0.5*0.5: expected %d, got %d", One/4, got)
	}
	if got := Mul(-3*One, half); got != -3*One/2 {
		t.Fatalf("-3*0.5: expected %d, got %d", -3*One/2, got)
	}
	if got := Mul(math.MaxInt64, 4*One); got != math.MaxInt64 {
		t.Fatalf("expected positive saturation, got %d", got)
	}
	if got := Mul(math.MaxInt64, -4*One); got != math.MinInt64 {
		t.Fatalf("expected negative saturation, got %d", got)
	}
}

func TestSatAddAndSatMul(t *testing.T) {
	if SatAdd(math.MaxInt64, 1) != math.MaxInt64 {
		t.Fatalf("SatAdd did not saturate high")
	}
	if SatAdd(math.MinInt64, -1) != math.MinInt64 {
		t.Fatalf("SatAdd did not saturate low")
	}
	if SatMul(1<<40, 1<<30) != math.MaxInt64 {
		t.Fatalf("SatMul did not saturate")
	}
	if SatMul(-7, 6) != -42 {
		t.Fatalf("SatMul(-7, 6) != -42")
	}
}

func TestSqrtAndRecip(t *testing.T) {
	cases := []float64{1e-4, 0.25, 1, 2, 1000, 1 << 20}
	for _, x := range cases {
		got := ToFloat64(Sqrt(FromFloat64(x)))
		if math.Abs(got-math.Sqrt(x)) > 2e-6*math.Max(1, math.Sqrt(x)) {
			t.Fatalf("sqrt(%g): expected %g, got %g", x, math.Sqrt(x), got)
		}
	}

	if got := ToFloat64(Recip(4 * One)); got != 0.25 {
		t.Fatalf("1/4: got %g", got)
	}
	if got := ToFloat64(RecipSqrt(FromFloat64(0.25))); math.Abs(got-2) > 1e-6 {
		t.Fatalf("1/sqrt(0.25): got %g", got)
	}
	if Recip(0) != math.MaxInt64 {
		t.Fatalf("1/0 should saturate")
	}
}

func TestExpAccuracy(t *testing.T) {
	for x := -17.0; x <= 3.0; x += 0.37 {
		got := ToFloat64(Exp(FromFloat64(x)))
		want := math.Exp(x)
		if math.Abs(got-want) > 5e-7*math.Max(1, want) {
			t.Fatalf("exp(%g): expected %g, got %g", x, want, got)
		}
	}
	if Exp(0) != One {
		t.Fatalf("exp(0) should be exactly one, got %d", Exp(0))
	}
	if Exp(-40*One) != 0 {
		t.Fatalf("exp(-40) should flush to zero")
	}
	if Exp(50*One) != math.MaxInt64 {
		t.Fatalf("exp(50) should saturate")
	}
}

func TestFixedConversion(t *testing.T) {
	q44 := NewFixed(8, 4)
	if q44.ToInternal(0x10) != One {
		t.Fatalf("0x10 in Q4.4 should be 1.0")
	}
	if q44.ToInternal(0xF8) != -One/2 {
		t.Fatalf("0xF8 in Q4.4 should be -0.5")
	}

	word, sat := q44.FromInternal(FromFloat64(0.99995))
	if word != 0x10 || sat {
		t.Fatalf("0.99995 should round to 0x10, got 0x%X sat=%v", word, sat)
	}
	word, sat = q44.FromInternal(100 * One)
	if word != 0x7F || !sat {
		t.Fatalf("100.0 should clamp to 0x7F, got 0x%X sat=%v", word, sat)
	}
	word, sat = q44.FromInternal(-100 * One)
	if word != 0x80 || !sat {
		t.Fatalf("-100.0 should clamp to 0x80, got 0x%X sat=%v", word, sat)
	}

	q16 := NewFixed(32, 16)
	word, _ = q16.FromInternal(FromFloat64(-0.84))
	if got := ToFloat64(q16.ToInternal(word)); math.Abs(got+0.84) > Resolution(q16) {
		t.Fatalf("Q16.16 -0.84 came back as %g", got)
	}
}

func TestHalfConversion(t *testing.T) {
	var h Half
	word, sat := h.FromInternal(FromFloat64(1.5))
	if word != 0x3E00 || sat {
		t.Fatalf("1.5 in fp16 should be 0x3E00, got 0x%X", word)
	}
	if ToFloat64(h.ToInternal(0xC000)) != -2 {
		t.Fatalf("0xC000 should decode to -2")
	}
	word, sat = h.FromInternal(FromFloat64(1e6))
	if word != 0x7BFF || !sat {
		t.Fatalf("1e6 should clamp to the largest finite half, got 0x%X", word)
	}
	word, sat = h.FromInternal(FromFloat64(-1e6))
	if word != 0xFBFF || !sat {
		t.Fatalf("-1e6 should clamp to the most negative finite half, got 0x%X", word)
	}
}

func TestFormatFor(t *testing.T) {
	cases := []struct {
		generation string
		frac       int
		bits       int
		name       string
	}{
		{"q8", -1, 8, "Q4.4"},
		{"q16", -1, 16, "Q8.8"},
		{"q32", -1, 32, "Q16.16"},
		{"q32", 20, 32, "Q12.20"},
		{"half", 3, 16, "fp16"},
	}
	for _, c := range cases {
		f, err := FormatFor(c.generation, c.frac)
		if err != nil {
			t.Fatalf("%s: %v", c.generation, err)
		}
		if f.Bits() != c.bits || f.Name() != c.name {
			t.Fatalf("%s/%d: got %d bits %s", c.generation, c.frac, f.Bits(), f.Name())
		}
	}

	if _, err := FormatFor("q8", 8); err == nil {
		t.Fatalf("Q0.8 in an 8-bit signed lane should be rejected")
	}
	if _, err := FormatFor("q64", -1); err == nil {
		t.Fatalf("unknown generation should be rejected")
	}
}

func TestPackCountsSaturation(t *testing.T) {
	f := NewFixed(8, 4)
	var values [codec.NumLanes]int64
	values[0] = 9 * One
	values[1] = -9 * One
	values[2] = One
	p, saturated := Pack(f, values)
	if saturated != 2 {
		t.Fatalf("expected 2 saturated lanes, got %d", saturated)
	}
	if p.Lane(2, 8) != 0x10 {
		t.Fatalf("lane 2 should be 0x10, got 0x%X", p.Lane(2, 8))
	}

	floats := UnpackFloats(f, PackFloats(f, []float64{0.5, -0.25}))
	if floats[0] != 0.5 || floats[1] != -0.25 || floats[2] != 0 {
		t.Fatalf("unexpected float round trip %v", floats[:3])
	}
}
