package payout

import "testing"

func sumCredits(credits []Credit) int64 {
	var total int64
	for _, c := range credits {
		total += c.Amount
	}
	return total
}

func TestWagerProportionalPayout(t *testing.T) {
	// 奖池 500 元：A 方三笔各 100 元，B 方一笔 200 元，A 胜，手续费 5%
	entries := []WagerEntry{
		{UserID: 1, Side: "A", Amount: 10000},
		{UserID: 2, Side: "A", Amount: 10000},
		{UserID: 3, Side: "A", Amount: 10000},
		{UserID: 4, Side: "B", Amount: 20000},
	}

	plan := Wager(entries, "A", 500)

	if plan.NoWinners {
		t.Fatal("存在胜方押注，不应返回 NoWinners")
	}
	if plan.Pool != 50000 {
		t.Errorf("Pool = %d, 期望 50000", plan.Pool)
	}
	if plan.Distributable != 47500 {
		t.Errorf("Distributable = %d, 期望 47500", plan.Distributable)
	}
	if len(plan.Credits) != 3 {
		t.Fatalf("派彩笔数 = %d, 期望 3", len(plan.Credits))
	}
	// 每笔 10000 * 47500 / 30000 = 15833（向下取整）
	for _, c := range plan.Credits {
		if c.Amount != 15833 {
			t.Errorf("用户 %d 派彩 = %d, 期望 15833", c.UserID, c.Amount)
		}
	}
	// 取整余数 1 分并入手续费：2500 + 1
	if plan.Fee != 2501 {
		t.Errorf("Fee = %d, 期望 2501", plan.Fee)
	}
}

func TestWagerConservation(t *testing.T) {
	// 故意构造除不尽的金额，校验 sum(派彩) + Fee == Pool 恒等
	entries := []WagerEntry{
		{UserID: 1, Side: "A", Amount: 3333},
		{UserID: 2, Side: "A", Amount: 7777},
		{UserID: 3, Side: "A", Amount: 101},
		{UserID: 4, Side: "B", Amount: 9999},
		{UserID: 5, Side: "B", Amount: 5},
	}

	for _, feeBps := range []int{0, 1, 500, 777, 9999} {
		plan := Wager(entries, "B", feeBps)
		if got := sumCredits(plan.Credits) + plan.Fee; got != plan.Pool {
			t.Errorf("feeBps=%d: sum(派彩)+Fee = %d, 期望等于 Pool %d", feeBps, got, plan.Pool)
		}
	}
}

func TestWagerNoWinningStakes(t *testing.T) {
	// 胜方无押注：不抽手续费，全部退款
	entries := []WagerEntry{
		{UserID: 1, Side: "A", Amount: 10000},
		{UserID: 2, Side: "A", Amount: 5000},
	}

	plan := Wager(entries, "B", 500)

	if !plan.NoWinners {
		t.Fatal("胜方无押注应返回 NoWinners")
	}
	if plan.Fee != 0 {
		t.Errorf("NoWinners 时 Fee = %d, 期望 0", plan.Fee)
	}
	if len(plan.Credits) != 0 {
		t.Errorf("NoWinners 时不应有派彩记录, 实际 %d 笔", len(plan.Credits))
	}
	if plan.Pool != 15000 {
		t.Errorf("Pool = %d, 期望 15000", plan.Pool)
	}
}

func TestWagerDeterministic(t *testing.T) {
	entries := []WagerEntry{
		{UserID: 1, Side: "A", Amount: 12345},
		{UserID: 2, Side: "B", Amount: 67890},
		{UserID: 3, Side: "A", Amount: 11111},
	}

	first := Wager(entries, "A", 300)
	for i := 0; i < 10; i++ {
		again := Wager(entries, "A", 300)
		if again.Fee != first.Fee || len(again.Credits) != len(first.Credits) {
			t.Fatal("相同输入必须得到相同分账计划")
		}
		for j := range again.Credits {
			if again.Credits[j] != first.Credits[j] {
				t.Fatalf("第 %d 笔派彩不一致: %+v != %+v", j, again.Credits[j], first.Credits[j])
			}
		}
	}
}

func TestWagerWholePoolToSingleWinner(t *testing.T) {
	// 胜方只有一人时独得全部可分配额
	entries := []WagerEntry{
		{UserID: 1, Side: "A", Amount: 10000},
		{UserID: 2, Side: "B", Amount: 30000},
	}

	plan := Wager(entries, "A", 500)

	if len(plan.Credits) != 1 {
		t.Fatalf("派彩笔数 = %d, 期望 1", len(plan.Credits))
	}
	// pool=40000, fee=2000, distributable=38000
	if plan.Credits[0].Amount != 38000 {
		t.Errorf("独胜派彩 = %d, 期望 38000", plan.Credits[0].Amount)
	}
	if plan.Fee != 2000 {
		t.Errorf("Fee = %d, 期望 2000", plan.Fee)
	}
}
