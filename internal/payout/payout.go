package payout

// ============================================================================
// 派彩计算（纯函数）
// ============================================================================
//
// 【设计原则】
// 1. 不碰数据库、不碰时间 —— 输入快照，输出分账计划，便于单测
// 2. 全程整数分运算，除法一律向下取整 —— 结果完全确定
// 3. 取整产生的余数全部并入平台手续费 —— 保证
//    sum(派彩) + Fee == Pool 恒等，资金不会凭空产生或消失
//
// 手续费用万分比（bps）表示：500 = 5%

// Credit 一笔应入账的派彩
type Credit struct {
	UserID int64
	Amount int64 // 分
}

// Plan 分账计划
// NoWinners 为 true 时表示无人可派彩（胜方无押注 / 无人得分 / 无人交卷），
// 此时 Fee 为 0，由调用方走全额退款策略
type Plan struct {
	Pool          int64 // 奖池总额
	Fee           int64 // 平台手续费（含取整余数）
	Distributable int64 // 奖池扣除手续费后的可分配额
	Credits       []Credit
	NoWinners     bool
}

// splitPool 计算手续费与可分配额
func splitPool(pool int64, feeBps int) (fee, distributable int64) {
	fee = pool * int64(feeBps) / 10000
	return fee, pool - fee
}
