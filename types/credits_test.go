package types

import (
	"errors"
	"math"
	"testing"
)

func TestCreditsAdd(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Credits
		expected Credits
		err      error
	}{
		{"Simple", 1000, 250, 1250, nil},
		{"Zero", 0, 0, 0, nil},
		{"Negative operand", 1000, -400, 600, nil},
		{"Overflow", math.MaxInt64, 1, 0, ErrOverflow},
		{"Underflow", math.MinInt64, -1, 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Add(tt.b)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error: got %v, want %v", err, tt.err)
			}
			if got != tt.expected {
				t.Errorf("Add: got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestCreditsSub(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Credits
		expected Credits
		err      error
	}{
		{"Simple", 1000, 400, 600, nil},
		{"To zero", 100, 100, 0, nil},
		{"Below zero", 100, 101, 0, ErrNegative},
		{"MinInt operand", 100, math.MinInt64, 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Sub(tt.b)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error: got %v, want %v", err, tt.err)
			}
			if got != tt.expected {
				t.Errorf("Sub: got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestCreditsPredicates(t *testing.T) {
	tests := []struct {
		name       string
		credits    Credits
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", 0, true, false, false},
		{"Positive", 100, false, true, false},
		{"Negative", -100, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.credits.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.credits.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.credits.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestCreditsMinMax(t *testing.T) {
	if got := Credits(50).Min(100); got != 50 {
		t.Errorf("Min: got %d, want 50", got)
	}
	if got := Credits(50).Max(100); got != 100 {
		t.Errorf("Max: got %d, want 100", got)
	}
}

func TestCreditsString(t *testing.T) {
	tests := []struct {
		credits  Credits
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1250, "1,250"},
		{1000000, "1,000,000"},
		{-1500, "-1,500"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.credits.String(); got != tt.expected {
				t.Errorf("String: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestSum(t *testing.T) {
	got, err := Sum(1000, -50, 200, -25)
	if err != nil {
		t.Fatalf("Sum error: %v", err)
	}
	if got != 1125 {
		t.Errorf("Sum: got %d, want 1125", got)
	}

	if got, _ := Sum(); got != 0 {
		t.Errorf("empty Sum: got %d, want 0", got)
	}

	if _, err := Sum(math.MaxInt64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}
