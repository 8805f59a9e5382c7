package model

import (
	"encoding/json"
	"time"
)

const (
	QuizStatusDraft      = "DRAFT"       // 草稿，创建者还在编辑题目
	QuizStatusOpen       = "OPEN"        // 开放报名
	QuizStatusInProgress = "IN_PROGRESS" // 答题进行中，不再接受报名
	QuizStatusCompleted  = "COMPLETED"   // 答题结束，等待确认成绩
	QuizStatusResolved   = "RESOLVED"    // 成绩已确认，等待结算
	QuizStatusSettled    = "SETTLED"     // 已结算，终态
	QuizStatusRefunded   = "REFUNDED"    // 已退款，终态
)

// ValidQuizTransitions 竞答状态机
var ValidQuizTransitions = map[string][]string{
	QuizStatusDraft:      {QuizStatusOpen},
	QuizStatusOpen:       {QuizStatusInProgress, QuizStatusRefunded},
	QuizStatusInProgress: {QuizStatusCompleted},
	QuizStatusCompleted:  {QuizStatusResolved, QuizStatusRefunded},
	QuizStatusResolved:   {QuizStatusSettled, QuizStatusRefunded},
}

func CanQuizTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidQuizTransitions[currentStatus]
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

// 竞答结算方式，创建时选定，结算时不可更换
const (
	QuizMethodProportional = "proportional" // 按得分占比分配
	QuizMethodTopWinners   = "top_winners"  // 前N名均分
	QuizMethodEqualSplit   = "equal_split"  // 完成者均分
)

func IsValidQuizMethod(method string) bool {
	switch method {
	case QuizMethodProportional, QuizMethodTopWinners, QuizMethodEqualSplit:
		return true
	}
	return false
}

// Quiz 竞答表
// 参与者缴纳报名费（每题单价 × 题目数）进入奖池，按选定方式瓜分
type Quiz struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"quiz_no"`
	RequestID      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，创建方生成
	CreatorID      int64      `gorm:"index;not null" json:"creator_id"`
	Title          string     `gorm:"type:varchar(256);not null" json:"title"`
	EntryFee       int64      `gorm:"not null" json:"entry_fee"`      // 每题报名费（分）
	QuestionCount  int        `gorm:"not null" json:"question_count"` // 题目数
	FeeBps         int        `gorm:"not null" json:"fee_bps"`        // 平台手续费（万分比）
	Method         string     `gorm:"type:varchar(20);not null" json:"method"`
	TopWinnerCount int        `gorm:"not null;default:0" json:"top_winner_count"` // 仅 top_winners 使用
	Status         string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Deadline       time.Time  `gorm:"not null" json:"deadline"`    // 报名截止时间
	CorrectAnswers string     `gorm:"type:text;not null" json:"-"` // 正确答案（JSON 数组），结算前不对外暴露
	ResolvedAt     *time.Time `json:"resolved_at"`
	SettledAt      *time.Time `json:"settled_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Quiz) TableName() string {
	return "quiz"
}

// TotalEntryFee 单人报名费 = 每题单价 × 题目数
func (q *Quiz) TotalEntryFee() int64 {
	return q.EntryFee * int64(q.QuestionCount)
}

// ScoreAnswers 按正确答案逐题比对，返回答对题数
// 提交答案不足题目数时，缺失的题按答错处理
func ScoreAnswers(correctJSON string, submitted []string) (int, error) {
	var correct []string
	if err := json.Unmarshal([]byte(correctJSON), &correct); err != nil {
		return 0, err
	}

	score := 0
	for i, answer := range correct {
		if i < len(submitted) && submitted[i] == answer {
			score++
		}
	}
	return score, nil
}
