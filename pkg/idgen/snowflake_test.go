package idgen

import (
	"strings"
	"testing"
)

func TestNextIDUnique(t *testing.T) {
	Init(1)

	seen := make(map[int64]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := NextID()
		if seen[id] {
			t.Fatalf("ID 重复: %d", id)
		}
		seen[id] = true
	}
}

func TestNextIDMonotonic(t *testing.T) {
	Init(1)

	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("ID 未递增: %d <= %d", id, prev)
		}
		prev = id
	}
}

func TestBusinessNoPrefix(t *testing.T) {
	if no := GenerateWagerNo(); !strings.HasPrefix(no, "WGR") {
		t.Errorf("赌局号 = %s, 期望 WGR 前缀", no)
	}
	if no := GenerateQuizNo(); !strings.HasPrefix(no, "QZ") {
		t.Errorf("竞答号 = %s, 期望 QZ 前缀", no)
	}
	if no := GenerateTransactionNo(); !strings.HasPrefix(no, "TXN") {
		t.Errorf("流水号 = %s, 期望 TXN 前缀", no)
	}
}
