package payout

// WagerEntry 赌局押注快照
type WagerEntry struct {
	UserID int64
	Side   string
	Amount int64
}

// Wager 双边对赌的彩池分账
//
// pool = Pa + Pb
// fee = pool * feeBps / 10000
// distributable = pool - fee
// 胜方每笔押注 s 的派彩 = s * distributable / 胜方押注总额（向下取整）
//
// 【边界】胜方无任何押注时不抽手续费、不派彩，返回 NoWinners，
// 由结算方对全部参与者原额退款
func Wager(entries []WagerEntry, winningSide string, feeBps int) Plan {
	var pool, winningTotal int64
	for _, e := range entries {
		pool += e.Amount
		if e.Side == winningSide {
			winningTotal += e.Amount
		}
	}

	if winningTotal == 0 {
		return Plan{Pool: pool, NoWinners: true}
	}

	fee, distributable := splitPool(pool, feeBps)

	plan := Plan{Pool: pool, Fee: fee, Distributable: distributable}

	var paid int64
	for _, e := range entries {
		if e.Side != winningSide {
			continue
		}
		amount := e.Amount * distributable / winningTotal
		paid += amount
		plan.Credits = append(plan.Credits, Credit{UserID: e.UserID, Amount: amount})
	}

	// 取整余数并入手续费，保证分账后总额与奖池严格相等
	plan.Fee += distributable - paid

	return plan
}
