package media

import "testing"

func TestRationalSeconds(t *testing.T) {
	tb := NewRational(1, 1000)
	if got := tb.Seconds(1500); got != 1.5 {
		t.Errorf("Seconds(1500) = %v, want 1.5", got)
	}
	if got := tb.Seconds(NoPTS); got != 0 {
		t.Errorf("Seconds(NoPTS) = %v, want 0", got)
	}
	if got := NewRational(0, 0).Float(); got != 0 {
		t.Errorf("invalid Float() = %v, want 0", got)
	}
}

func TestRationalFromSeconds(t *testing.T) {
	tests := []struct {
		tb   Rational
		sec  float64
		want int64
	}{
		{NewRational(1, 1000), 1.234, 1234},
		{NewRational(1, 90000), 1.5, 135000},
		{NewRational(1, 30), 0.04, 1},
		{NewRational(1, 90000), 0.009, 810},
		{NewRational(1, 90000), 0.011, 990},
		{NewRational(0, 1), 10, 0},
	}
	for _, tt := range tests {
		if got := tt.tb.FromSeconds(tt.sec); got != tt.want {
			t.Errorf("%s.FromSeconds(%v) = %d, want %d", tt.tb, tt.sec, got, tt.want)
		}
	}
}
