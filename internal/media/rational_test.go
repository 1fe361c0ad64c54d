package media

import "testing"

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		wantErr bool
	}{
		{in: "30/1", want: Rational{Num: 30, Den: 1}},
		{in: "30000/1001", want: Rational{Num: 30000, Den: 1001}},
		{in: "25", want: Rational{Num: 25, Den: 1}},
		{in: "0/1", want: Rational{Num: 0, Den: 1}},
		{in: " 24/1 ", want: Rational{Num: 24, Den: 1}},
		{in: "", wantErr: true},
		{in: "30/0", wantErr: true},
		{in: "-30/1", wantErr: true},
		{in: "30/-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1/2/3", wantErr: true},
		{in: "30.0/1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRational(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRational(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRational(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRational(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRationalFloat(t *testing.T) {
	if got := (Rational{Num: 30000, Den: 1001}).Float(); got < 29.97 || got > 29.98 {
		t.Errorf("Float() = %v", got)
	}
	if got := (Rational{}).Float(); got != 0 {
		t.Errorf("zero value Float() = %v, want 0", got)
	}
}
