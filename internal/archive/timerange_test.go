package archive

import "testing"

func TestTimeRange_Contains(t *testing.T) {
	r := TimeRange{FromTS: "1700000000", ToTS: "1700003600"}

	tests := []struct {
		ts   string
		want bool
	}{
		{"1700003700", false},
		{"1700001800", true},
		{"1700000000", true},
		{"1700003600.000000", true},
		{"1700003600.000001", false},
		{"1699999999.999999", false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.ts); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.ts, got, tt.want)
		}
	}
}

func TestTimeRange_NormalizeSwapsInverted(t *testing.T) {
	r, swapped := TimeRange{FromTS: "1700003600", ToTS: "1700000000"}.Normalize()
	if !swapped {
		t.Fatal("expected inverted range to be swapped")
	}
	if r.FromTS != "1700000000" || r.ToTS != "1700003600" {
		t.Errorf("normalized = %+v", r)
	}
	if r.Contains("1700003700") {
		t.Error("1700003700 should be excluded after swap")
	}
	if !r.Contains("1700001800") {
		t.Error("1700001800 should be included after swap")
	}
}

func TestTimeRange_OpenEnded(t *testing.T) {
	if (TimeRange{}).Active() {
		t.Error("empty range should be inactive")
	}
	from := TimeRange{FromTS: "1700000000"}
	if !from.Contains("1800000000") || from.Contains("1600000000") {
		t.Error("from-only range bounds wrong")
	}
	if !from.Before("1600000000") || from.Before("1700000000") {
		t.Error("Before wrong for from-only range")
	}
	to := TimeRange{ToTS: "1700000000"}
	if !to.Contains("1600000000") || to.Contains("1800000000") {
		t.Error("to-only range bounds wrong")
	}
	if _, swapped := to.Normalize(); swapped {
		t.Error("open range should never swap")
	}
}
