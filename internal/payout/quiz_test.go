package payout

import (
	"testing"
	"time"
)

func quizTime(minute int) time.Time {
	return time.Date(2025, 6, 1, 12, minute, 0, 0, time.UTC)
}

func TestQuizProportional(t *testing.T) {
	// 奖池 300 元，手续费 10%，可分配 270 元，按得分 3:2:1 分
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000, Score: 3, Completed: true, CompletedAt: quizTime(1)},
		{UserID: 2, Amount: 10000, Score: 2, Completed: true, CompletedAt: quizTime(2)},
		{UserID: 3, Amount: 10000, Score: 1, Completed: true, CompletedAt: quizTime(3)},
	}

	plan, err := Quiz(entries, "proportional", 0, 1000)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}

	if plan.Distributable != 27000 {
		t.Errorf("Distributable = %d, 期望 27000", plan.Distributable)
	}
	want := map[int64]int64{1: 13500, 2: 9000, 3: 4500}
	for _, c := range plan.Credits {
		if c.Amount != want[c.UserID] {
			t.Errorf("用户 %d 派彩 = %d, 期望 %d", c.UserID, c.Amount, want[c.UserID])
		}
	}
	if got := sumCredits(plan.Credits) + plan.Fee; got != plan.Pool {
		t.Errorf("sum(派彩)+Fee = %d, 期望等于 Pool %d", got, plan.Pool)
	}
}

func TestQuizProportionalSkipsZeroScore(t *testing.T) {
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000, Score: 5, Completed: true, CompletedAt: quizTime(1)},
		{UserID: 2, Amount: 10000, Score: 0, Completed: true, CompletedAt: quizTime(2)},
		{UserID: 3, Amount: 10000, Score: 0, Completed: false},
	}

	plan, err := Quiz(entries, "proportional", 0, 1000)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}

	if len(plan.Credits) != 1 {
		t.Fatalf("派彩笔数 = %d, 期望 1（零分和未交卷不派彩）", len(plan.Credits))
	}
	if plan.Credits[0].UserID != 1 {
		t.Errorf("派彩对象 = %d, 期望 1", plan.Credits[0].UserID)
	}
}

func TestQuizAllZeroScores(t *testing.T) {
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000, Score: 0, Completed: true, CompletedAt: quizTime(1)},
		{UserID: 2, Amount: 10000, Score: 0, Completed: true, CompletedAt: quizTime(2)},
	}

	plan, err := Quiz(entries, "proportional", 0, 1000)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}

	if !plan.NoWinners {
		t.Fatal("全员零分应返回 NoWinners")
	}
	if plan.Fee != 0 {
		t.Errorf("NoWinners 时 Fee = %d, 期望 0", plan.Fee)
	}
}

func TestQuizTopWinners(t *testing.T) {
	// 前 2 名均分：得分 5、3、3、1，第二名并列时交卷早者胜出
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000, Score: 5, Completed: true, CompletedAt: quizTime(5)},
		{UserID: 2, Amount: 10000, Score: 3, Completed: true, CompletedAt: quizTime(8)},
		{UserID: 3, Amount: 10000, Score: 3, Completed: true, CompletedAt: quizTime(2)},
		{UserID: 4, Amount: 10000, Score: 1, Completed: true, CompletedAt: quizTime(1)},
	}

	plan, err := Quiz(entries, "top_winners", 2, 1000)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}

	if len(plan.Credits) != 2 {
		t.Fatalf("派彩笔数 = %d, 期望 2", len(plan.Credits))
	}
	winners := map[int64]bool{}
	for _, c := range plan.Credits {
		winners[c.UserID] = true
		// pool=40000, fee=4000, distributable=36000, 每人 18000
		if c.Amount != 18000 {
			t.Errorf("用户 %d 派彩 = %d, 期望 18000", c.UserID, c.Amount)
		}
	}
	if !winners[1] || !winners[3] {
		t.Errorf("获胜者 = %v, 期望用户 1 和用户 3（同分时交卷早者优先）", winners)
	}
}

func TestQuizTopWinnersFewerThanN(t *testing.T) {
	// 交卷人数少于 N 时，按实际人数均分
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000, Score: 2, Completed: true, CompletedAt: quizTime(1)},
		{UserID: 2, Amount: 10000, Score: 0, Completed: false},
	}

	plan, err := Quiz(entries, "top_winners", 3, 0)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}

	if len(plan.Credits) != 1 {
		t.Fatalf("派彩笔数 = %d, 期望 1", len(plan.Credits))
	}
	if plan.Credits[0].Amount != 20000 {
		t.Errorf("派彩 = %d, 期望 20000", plan.Credits[0].Amount)
	}
}

func TestQuizEqualSplit(t *testing.T) {
	// 三人交卷一人弃赛，交卷者均分，不看得分
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000, Score: 9, Completed: true, CompletedAt: quizTime(1)},
		{UserID: 2, Amount: 10000, Score: 0, Completed: true, CompletedAt: quizTime(2)},
		{UserID: 3, Amount: 10000, Score: 4, Completed: true, CompletedAt: quizTime(3)},
		{UserID: 4, Amount: 10000, Score: 0, Completed: false},
	}

	plan, err := Quiz(entries, "equal_split", 0, 1000)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}

	if len(plan.Credits) != 3 {
		t.Fatalf("派彩笔数 = %d, 期望 3", len(plan.Credits))
	}
	// pool=40000, fee=4000, distributable=36000, 每人 12000
	for _, c := range plan.Credits {
		if c.Amount != 12000 {
			t.Errorf("用户 %d 派彩 = %d, 期望 12000", c.UserID, c.Amount)
		}
	}
	if got := sumCredits(plan.Credits) + plan.Fee; got != plan.Pool {
		t.Errorf("sum(派彩)+Fee = %d, 期望等于 Pool %d", got, plan.Pool)
	}
}

func TestQuizNoOneCompleted(t *testing.T) {
	entries := []QuizEntry{
		{UserID: 1, Amount: 10000},
		{UserID: 2, Amount: 10000},
	}

	for _, method := range []string{"proportional", "top_winners", "equal_split"} {
		plan, err := Quiz(entries, method, 2, 1000)
		if err != nil {
			t.Fatalf("method=%s: Quiz 返回错误: %v", method, err)
		}
		if !plan.NoWinners {
			t.Errorf("method=%s: 无人交卷应返回 NoWinners", method)
		}
	}
}

func TestQuizUnknownMethod(t *testing.T) {
	if _, err := Quiz(nil, "lottery", 0, 0); err != ErrUnknownMethod {
		t.Errorf("err = %v, 期望 ErrUnknownMethod", err)
	}
}

func TestQuizEqualSplitConservation(t *testing.T) {
	// 人数除不尽可分配额时，余数并入手续费
	entries := []QuizEntry{
		{UserID: 1, Amount: 3334, Score: 1, Completed: true, CompletedAt: quizTime(1)},
		{UserID: 2, Amount: 3333, Score: 1, Completed: true, CompletedAt: quizTime(2)},
		{UserID: 3, Amount: 3333, Score: 1, Completed: true, CompletedAt: quizTime(3)},
	}

	plan, err := Quiz(entries, "equal_split", 0, 777)
	if err != nil {
		t.Fatalf("Quiz 返回错误: %v", err)
	}
	if got := sumCredits(plan.Credits) + plan.Fee; got != plan.Pool {
		t.Errorf("sum(派彩)+Fee = %d, 期望等于 Pool %d", got, plan.Pool)
	}
}
