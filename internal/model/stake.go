package model

import (
	"time"
)

const (
	InstanceTypeWager = "WAGER"
	InstanceTypeQuiz  = "QUIZ"
)

// StakeEntry 押注/报名记录表
// 一条记录对应一个参与者在一个赌局或竞答中的一次投入
//
// 【关键点】(instance_type, instance_no, user_id) 组合唯一索引由数据库保证，
// 并发重复参与时第二次插入会触发唯一键冲突，这是防止重复押注的最终防线
//
// settled 标记：结算/退款时逐条打标，配合状态机 CAS 让派彩本身具备幂等性，
// 即使结算事务重放也不会给同一条记录重复入账
type StakeEntry struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	InstanceType string     `gorm:"type:varchar(10);not null;uniqueIndex:uk_instance_user" json:"instance_type"`
	InstanceNo   string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_instance_user;index" json:"instance_no"`
	UserID       int64      `gorm:"not null;uniqueIndex:uk_instance_user;index" json:"user_id"`
	Side         string     `gorm:"type:varchar(4)" json:"side"`           // 赌局：A/B；竞答不使用
	Amount       int64      `gorm:"not null" json:"amount"`                // 投入金额（分）
	Answers      string     `gorm:"type:text" json:"-"`                    // 竞答：提交的答案（JSON 数组）
	Score        int        `gorm:"not null;default:0" json:"score"`       // 竞答：答对题数
	CompletedAt  *time.Time `json:"completed_at"`                          // 竞答：交卷时间，未交卷为 NULL
	Settled      bool       `gorm:"not null;default:false" json:"settled"` // 派彩/退款是否已入账
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (StakeEntry) TableName() string {
	return "stake_entry"
}
