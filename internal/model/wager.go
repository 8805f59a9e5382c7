package model

import (
	"time"
)

const (
	WagerStatusOpen     = "OPEN"     // 开放中，可以参与
	WagerStatusResolved = "RESOLVED" // 已裁定胜方，等待结算
	WagerStatusSettled  = "SETTLED"  // 已结算，终态
	WagerStatusRefunded = "REFUNDED" // 已退款，终态
)

// ValidWagerTransitions 赌局状态机
// 终态（SETTLED / REFUNDED）不允许任何后续流转，OPEN 也不允许重入
var ValidWagerTransitions = map[string][]string{
	WagerStatusOpen:     {WagerStatusResolved, WagerStatusRefunded},
	WagerStatusResolved: {WagerStatusSettled, WagerStatusRefunded},
}

func CanWagerTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidWagerTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	WagerSideA = "A"
	WagerSideB = "B"
)

func IsValidWagerSide(side string) bool {
	return side == WagerSideA || side == WagerSideB
}

// Wager 赌局表
// 双边对赌：参与者在 A/B 两边押注，裁定胜方后按押注占比瓜分奖池
//
// 创建后除状态/胜方字段外不可修改；一旦存在非创建者的押注，
// 押注金额与截止时间也全部冻结
type Wager struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WagerNo     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"wager_no"`
	RequestID   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，创建方生成
	CreatorID   int64      `gorm:"index;not null" json:"creator_id"`
	Title       string     `gorm:"type:varchar(256);not null" json:"title"`
	StakeAmount int64      `gorm:"not null" json:"stake_amount"` // 单边押注金额（分）
	FeeBps      int        `gorm:"not null" json:"fee_bps"`      // 平台手续费（万分比）
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Deadline    time.Time  `gorm:"not null" json:"deadline"`
	WinningSide *string    `gorm:"type:varchar(4)" json:"winning_side"` // 裁定前为 NULL
	ResolvedAt  *time.Time `json:"resolved_at"`
	SettledAt   *time.Time `json:"settled_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wager) TableName() string {
	return "wager"
}
