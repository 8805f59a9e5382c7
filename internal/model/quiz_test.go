package model

import "testing"

func TestCanQuizTransitionTo(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{QuizStatusDraft, QuizStatusOpen, true},
		{QuizStatusOpen, QuizStatusInProgress, true},
		{QuizStatusOpen, QuizStatusRefunded, true},
		{QuizStatusInProgress, QuizStatusCompleted, true},
		{QuizStatusCompleted, QuizStatusResolved, true},
		{QuizStatusResolved, QuizStatusSettled, true},
		{QuizStatusResolved, QuizStatusRefunded, true},
		// 非法流转
		{QuizStatusDraft, QuizStatusInProgress, false},
		{QuizStatusOpen, QuizStatusSettled, false},
		{QuizStatusInProgress, QuizStatusRefunded, false},
		{QuizStatusSettled, QuizStatusRefunded, false},
		{QuizStatusRefunded, QuizStatusOpen, false},
		{"UNKNOWN", QuizStatusOpen, false},
	}

	for _, tt := range tests {
		if got := CanQuizTransitionTo(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanQuizTransitionTo(%s, %s) = %v, 期望 %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestScoreAnswers(t *testing.T) {
	correct := `["A","B","C","D"]`

	tests := []struct {
		name      string
		submitted []string
		want      int
	}{
		{"全对", []string{"A", "B", "C", "D"}, 4},
		{"部分正确", []string{"A", "B", "D", "C"}, 2},
		{"全错", []string{"B", "A", "D", "C"}, 0},
		{"少交的题按答错计", []string{"A", "B"}, 2},
		{"多交的题忽略", []string{"A", "B", "C", "D", "A"}, 4},
		{"空白卷", nil, 0},
	}

	for _, tt := range tests {
		got, err := ScoreAnswers(correct, tt.submitted)
		if err != nil {
			t.Fatalf("%s: ScoreAnswers 返回错误: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: 得分 = %d, 期望 %d", tt.name, got, tt.want)
		}
	}
}

func TestScoreAnswersInvalidJSON(t *testing.T) {
	if _, err := ScoreAnswers("not-json", []string{"A"}); err == nil {
		t.Error("非法答案 JSON 应返回错误")
	}
}

func TestTotalEntryFee(t *testing.T) {
	q := &Quiz{EntryFee: 500, QuestionCount: 4}
	if got := q.TotalEntryFee(); got != 2000 {
		t.Errorf("TotalEntryFee = %d, 期望 2000", got)
	}
}

func TestIsValidQuizMethod(t *testing.T) {
	for _, method := range []string{QuizMethodProportional, QuizMethodTopWinners, QuizMethodEqualSplit} {
		if !IsValidQuizMethod(method) {
			t.Errorf("IsValidQuizMethod(%s) = false, 期望 true", method)
		}
	}
	if IsValidQuizMethod("lottery") {
		t.Error("IsValidQuizMethod(lottery) = true, 期望 false")
	}
}
