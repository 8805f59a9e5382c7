package payout

import (
	"errors"
	"sort"
	"time"
)

var ErrUnknownMethod = errors.New("未知的结算方式")

// QuizEntry 竞答报名快照
// Completed 为 false 表示参与者报了名但从未交卷
type QuizEntry struct {
	UserID      int64
	Amount      int64
	Score       int
	Completed   bool
	CompletedAt time.Time
}

// Quiz 竞答分账入口，按结算方式分发
// topN 仅 top_winners 方式使用
func Quiz(entries []QuizEntry, method string, topN int, feeBps int) (Plan, error) {
	switch method {
	case "proportional":
		return quizProportional(entries, feeBps), nil
	case "top_winners":
		return quizTopWinners(entries, topN, feeBps), nil
	case "equal_split":
		return quizEqualSplit(entries, feeBps), nil
	default:
		return Plan{}, ErrUnknownMethod
	}
}

func totalPool(entries []QuizEntry) int64 {
	var pool int64
	for _, e := range entries {
		pool += e.Amount
	}
	return pool
}

// quizProportional 按得分占比分配：payout = score * distributable / totalScore
// 零分参与者不派彩；所有人都是零分时视同无胜者，走退款策略
func quizProportional(entries []QuizEntry, feeBps int) Plan {
	pool := totalPool(entries)

	var totalScore int64
	for _, e := range entries {
		if e.Completed {
			totalScore += int64(e.Score)
		}
	}

	if totalScore == 0 {
		return Plan{Pool: pool, NoWinners: true}
	}

	fee, distributable := splitPool(pool, feeBps)
	plan := Plan{Pool: pool, Fee: fee, Distributable: distributable}

	var paid int64
	for _, e := range entries {
		if !e.Completed || e.Score == 0 {
			continue
		}
		amount := int64(e.Score) * distributable / totalScore
		paid += amount
		plan.Credits = append(plan.Credits, Credit{UserID: e.UserID, Amount: amount})
	}

	plan.Fee += distributable - paid
	return plan
}

// quizTopWinners 前N名均分可分配额
// 排名规则：得分高者优先；同分时交卷早者优先（第N名并列的裁决规则）
func quizTopWinners(entries []QuizEntry, topN int, feeBps int) Plan {
	pool := totalPool(entries)

	var completed []QuizEntry
	for _, e := range entries {
		if e.Completed {
			completed = append(completed, e)
		}
	}

	if len(completed) == 0 || topN <= 0 {
		return Plan{Pool: pool, NoWinners: true}
	}

	sort.SliceStable(completed, func(i, j int) bool {
		if completed[i].Score != completed[j].Score {
			return completed[i].Score > completed[j].Score
		}
		return completed[i].CompletedAt.Before(completed[j].CompletedAt)
	})

	if topN > len(completed) {
		topN = len(completed)
	}
	winners := completed[:topN]

	fee, distributable := splitPool(pool, feeBps)
	plan := Plan{Pool: pool, Fee: fee, Distributable: distributable}

	share := distributable / int64(topN)
	var paid int64
	for _, e := range winners {
		paid += share
		plan.Credits = append(plan.Credits, Credit{UserID: e.UserID, Amount: share})
	}

	plan.Fee += distributable - paid
	return plan
}

// quizEqualSplit 所有交卷者均分可分配额，不看得分
func quizEqualSplit(entries []QuizEntry, feeBps int) Plan {
	pool := totalPool(entries)

	var completed []QuizEntry
	for _, e := range entries {
		if e.Completed {
			completed = append(completed, e)
		}
	}

	if len(completed) == 0 {
		return Plan{Pool: pool, NoWinners: true}
	}

	fee, distributable := splitPool(pool, feeBps)
	plan := Plan{Pool: pool, Fee: fee, Distributable: distributable}

	share := distributable / int64(len(completed))
	var paid int64
	for _, e := range completed {
		paid += share
		plan.Credits = append(plan.Credits, Credit{UserID: e.UserID, Amount: share})
	}

	plan.Fee += distributable - paid
	return plan
}
