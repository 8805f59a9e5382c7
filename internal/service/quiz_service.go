package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"wagr/internal/config"
	"wagr/internal/infrastructure/lock"
	"wagr/internal/model"
	"wagr/internal/repository"
	"wagr/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// QuizService 竞答服务：创建、发布、报名、交卷、确认成绩
// 答题本身的资金语义和赌局一致：报名费入池、结算时按方式分配
type QuizService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	quizRepo        *repository.QuizRepository
	stakeRepo       *repository.StakeRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewQuizService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *QuizService {
	return &QuizService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		quizRepo:        repository.NewQuizRepository(db),
		stakeRepo:       repository.NewStakeRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type CreateQuizRequest struct {
	RequestID      string   `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	CreatorID      int64    `json:"creator_id" binding:"required"`
	Title          string   `json:"title" binding:"required"`
	EntryFee       int64    `json:"entry_fee" binding:"required,gt=0"` // 每题报名费（分）
	Method         string   `json:"method" binding:"required"`
	TopWinnerCount int      `json:"top_winner_count"`
	Deadline       int64    `json:"deadline" binding:"required"` // 报名截止，Unix 秒
	CorrectAnswers []string `json:"correct_answers" binding:"required,min=1"`
	FeeBps         int      `json:"fee_bps"` // 0 时使用配置默认值
}

// CreateQuiz 创建竞答（草稿态）
// 正确答案创建时写入，交卷即自动判分；发布前可以反复修改
func (s *QuizService) CreateQuiz(ctx context.Context, req *CreateQuizRequest) (*model.Quiz, error) {
	existing, err := s.quizRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询竞答失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if !model.IsValidQuizMethod(req.Method) {
		return nil, errors.New("结算方式不合法")
	}
	if req.Method == model.QuizMethodTopWinners && req.TopWinnerCount <= 0 {
		return nil, errors.New("top_winners 方式必须指定获胜名额")
	}

	deadline := time.Unix(req.Deadline, 0)
	if !deadline.After(time.Now()) {
		return nil, errors.New("截止时间必须晚于当前时间")
	}

	feeBps := req.FeeBps
	if feeBps <= 0 {
		feeBps = s.cfg.Business.QuizFeeBps
	}

	answersJSON, err := json.Marshal(req.CorrectAnswers)
	if err != nil {
		return nil, fmt.Errorf("序列化答案失败: %w", err)
	}

	quiz := &model.Quiz{
		QuizNo:         idgen.GenerateQuizNo(),
		RequestID:      req.RequestID,
		CreatorID:      req.CreatorID,
		Title:          req.Title,
		EntryFee:       req.EntryFee,
		QuestionCount:  len(req.CorrectAnswers),
		FeeBps:         feeBps,
		Method:         req.Method,
		TopWinnerCount: req.TopWinnerCount,
		Status:         model.QuizStatusDraft,
		Deadline:       deadline,
		CorrectAnswers: string(answersJSON),
	}

	if err := s.quizRepo.Create(ctx, nil, quiz); err != nil {
		return nil, fmt.Errorf("创建竞答失败: %w", err)
	}

	log.Printf("竞答创建成功: quizNo=%s, creatorID=%d, questions=%d", quiz.QuizNo, req.CreatorID, quiz.QuestionCount)
	return quiz, nil
}

// PublishQuiz 发布竞答：DRAFT -> OPEN，开始接受报名
func (s *QuizService) PublishQuiz(ctx context.Context, quizNo string, actorID int64) error {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return err
	}
	if quiz.CreatorID != actorID {
		return ErrNotCreator
	}
	return s.quizRepo.UpdateStatus(ctx, nil, quizNo, model.QuizStatusDraft, model.QuizStatusOpen)
}

// StartQuiz 开始答题：OPEN -> IN_PROGRESS，停止报名
func (s *QuizService) StartQuiz(ctx context.Context, quizNo string, actorID int64) error {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return err
	}
	if quiz.CreatorID != actorID {
		return ErrNotCreator
	}
	return s.quizRepo.UpdateStatus(ctx, nil, quizNo, model.QuizStatusOpen, model.QuizStatusInProgress)
}

type JoinQuizRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	QuizNo    string `json:"quiz_no" binding:"required"`
	UserID    int64  `json:"user_id" binding:"required"`
}

// Join 报名竞答
// 报名费 = 每题单价 × 题目数，原子性与并发控制和赌局参与完全一致
func (s *QuizService) Join(ctx context.Context, req *JoinQuizRequest) error {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, req.QuizNo)
	if err != nil {
		return err
	}

	if quiz.Status != model.QuizStatusOpen {
		return ErrInstanceNotOpen
	}
	if time.Now().After(quiz.Deadline) {
		return ErrDeadlineElapsed
	}

	existing, err := s.stakeRepo.GetByInstanceAndUser(ctx, model.InstanceTypeQuiz, req.QuizNo, req.UserID)
	if err != nil {
		return fmt.Errorf("查询报名记录失败: %w", err)
	}
	if existing != nil {
		return repository.ErrDuplicateStake
	}

	entryFee := quiz.TotalEntryFee()

	joinLock := lock.NewJoinLock(s.redisClient, req.UserID, req.RequestID)
	if err := joinLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer joinLock.Unlock(ctx)

	account, err := s.accountRepo.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("获取账户信息失败: %w", err)
	}
	if account.Balance < entryFee {
		return repository.ErrInsufficientFunds
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Deduct(ctx, tx, req.UserID, entryFee, account.Version); err != nil {
			return err
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        req.UserID,
			ReferenceNo:   req.QuizNo,
			Amount:        -entryFee,
			Type:          model.TransactionTypeQuizJoin,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance - entryFee,
			Remark:        fmt.Sprintf("报名竞答-%s", req.QuizNo),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		entry := &model.StakeEntry{
			InstanceType: model.InstanceTypeQuiz,
			InstanceNo:   req.QuizNo,
			UserID:       req.UserID,
			Amount:       entryFee,
		}
		return s.stakeRepo.Create(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	log.Printf("报名竞答成功: quizNo=%s, userID=%d, entryFee=%d", req.QuizNo, req.UserID, entryFee)
	return nil
}

type SubmitAnswersRequest struct {
	QuizNo  string   `json:"quiz_no" binding:"required"`
	UserID  int64    `json:"user_id" binding:"required"`
	Answers []string `json:"answers" binding:"required"`
}

// SubmitAnswers 交卷
// 按创建时写入的正确答案即时判分；每人只能交一次卷，
// 交卷时间用于 top_winners 的同分裁决
func (s *QuizService) SubmitAnswers(ctx context.Context, req *SubmitAnswersRequest) (int, error) {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, req.QuizNo)
	if err != nil {
		return 0, err
	}

	if quiz.Status != model.QuizStatusInProgress {
		return 0, ErrInstanceNotOpen
	}

	entry, err := s.stakeRepo.GetByInstanceAndUser(ctx, model.InstanceTypeQuiz, req.QuizNo, req.UserID)
	if err != nil {
		return 0, fmt.Errorf("查询报名记录失败: %w", err)
	}
	if entry == nil {
		return 0, repository.ErrStakeNotFound
	}
	if entry.CompletedAt != nil {
		return 0, repository.ErrAlreadySubmitted
	}

	score, err := model.ScoreAnswers(quiz.CorrectAnswers, req.Answers)
	if err != nil {
		return 0, fmt.Errorf("判分失败: %w", err)
	}

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return 0, fmt.Errorf("序列化答案失败: %w", err)
	}

	if err := s.stakeRepo.SubmitAnswers(ctx, nil, entry.ID, string(answersJSON), score); err != nil {
		return 0, err
	}

	log.Printf("交卷成功: quizNo=%s, userID=%d, score=%d", req.QuizNo, req.UserID, score)
	return score, nil
}

// CompleteQuiz 结束答题：IN_PROGRESS -> COMPLETED
func (s *QuizService) CompleteQuiz(ctx context.Context, quizNo string, actorID int64) error {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return err
	}
	if quiz.CreatorID != actorID {
		return ErrNotCreator
	}
	return s.quizRepo.UpdateStatus(ctx, nil, quizNo, model.QuizStatusInProgress, model.QuizStatusCompleted)
}

// ResolveQuiz 确认成绩：COMPLETED -> RESOLVED，进入待结算队列
func (s *QuizService) ResolveQuiz(ctx context.Context, quizNo string, actorID int64) error {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return err
	}
	if quiz.CreatorID != actorID {
		return ErrNotCreator
	}
	return s.quizRepo.UpdateStatus(ctx, nil, quizNo, model.QuizStatusCompleted, model.QuizStatusResolved)
}

func (s *QuizService) GetQuiz(ctx context.Context, quizNo string) (*model.Quiz, error) {
	return s.quizRepo.GetByQuizNo(ctx, quizNo)
}

func (s *QuizService) ListEntries(ctx context.Context, quizNo string) ([]*model.StakeEntry, error) {
	return s.stakeRepo.ListByInstance(ctx, model.InstanceTypeQuiz, quizNo)
}

func (s *QuizService) ListUserQuizzes(ctx context.Context, userID int64, page, pageSize int) ([]*model.Quiz, int64, error) {
	return s.quizRepo.ListByUserID(ctx, userID, page, pageSize)
}
