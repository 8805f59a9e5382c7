package model

import "testing"

func TestCanWagerTransitionTo(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{WagerStatusOpen, WagerStatusResolved, true},
		{WagerStatusOpen, WagerStatusRefunded, true},
		{WagerStatusResolved, WagerStatusSettled, true},
		{WagerStatusResolved, WagerStatusRefunded, true},
		// 非法流转
		{WagerStatusOpen, WagerStatusSettled, false},
		{WagerStatusSettled, WagerStatusRefunded, false},
		{WagerStatusRefunded, WagerStatusOpen, false},
		{WagerStatusSettled, WagerStatusResolved, false},
		{"UNKNOWN", WagerStatusResolved, false},
	}

	for _, tt := range tests {
		if got := CanWagerTransitionTo(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanWagerTransitionTo(%s, %s) = %v, 期望 %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestIsValidWagerSide(t *testing.T) {
	if !IsValidWagerSide(WagerSideA) || !IsValidWagerSide(WagerSideB) {
		t.Error("A/B 双方应为合法押注方向")
	}
	if IsValidWagerSide("C") || IsValidWagerSide("") {
		t.Error("A/B 之外的方向应为非法")
	}
}
