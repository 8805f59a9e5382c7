package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit     = "deposit"      // 充值（支付网关确认后入账）
	TransactionTypeWithdrawal  = "withdrawal"   // 提现
	TransactionTypeTransferIn  = "transfer_in"  // 转账入账
	TransactionTypeTransferOut = "transfer_out" // 转账出账
	TransactionTypeWagerJoin   = "wager_join"   // 参与赌局（扣押注）
	TransactionTypeWagerEdit   = "wager_edit"   // 创建者修改押注金额（补扣或退差额）
	TransactionTypeWagerRefund = "wager_refund" // 赌局退款
	TransactionTypeWagerWin    = "wager_win"    // 赌局结算派彩
	TransactionTypeQuizJoin    = "quiz_join"    // 参与竞答（扣报名费）
	TransactionTypeQuizRefund  = "quiz_refund"  // 竞答退款
	TransactionTypeQuizWin     = "quiz_win"     // 竞答结算派彩
	TransactionTypePlatformFee = "platform_fee" // 平台手续费入账
)

// ============================================================================
// 账户流水实体
// ============================================================================

// AccountTransaction 账户流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联业务单号（赌局号/竞答号/网关流水号）—— 便于对账
// 3. 记录交易前后余额 —— 任意时刻用户流水之和必须等于当前余额
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`                               // 用户ID
	ReferenceNo   string    `gorm:"type:varchar(64);index;not null" json:"reference_no"`         // 关联业务单号
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 交易类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`                             // 备注
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
