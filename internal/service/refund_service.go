package service

import (
	"context"
	"encoding/json"
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

// RefundService 欠额退款路径
// 截止时间已过、去重后参与人数 <= 1 的赌局/竞答不做派彩，
// 把唯一参与者的投入原额退回并流转到 REFUNDED 终态
//
// 重复调用安全：终态直接返回，状态 CAS 在退款事务内兜底
type RefundService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	wagerRepo       *repository.WagerRepository
	quizRepo        *repository.QuizRepository
	stakeRepo       *repository.StakeRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewRefundService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *RefundService {
	return &RefundService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		wagerRepo:       repository.NewWagerRepository(db),
		quizRepo:        repository.NewQuizRepository(db),
		stakeRepo:       repository.NewStakeRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// RefundResult 退款结果
type RefundResult struct {
	InstanceNo  string `json:"instance_no"`
	Status      string `json:"status"`
	RefundCount int    `json:"refund_count"`
	Amount      int64  `json:"amount"`
	Message     string `json:"message,omitempty"`
}

// RefundWager 赌局欠额退款
func (s *RefundService) RefundWager(ctx context.Context, wagerNo string, holder string) (*RefundResult, error) {
	wager, err := s.wagerRepo.GetByWagerNo(ctx, wagerNo)
	if err != nil {
		return nil, err
	}

	// 幂等：已是终态直接返回
	if wager.Status == model.WagerStatusRefunded || wager.Status == model.WagerStatusSettled {
		return &RefundResult{
			InstanceNo: wagerNo,
			Status:     wager.Status,
			Message:    "已处理，请勿重复操作",
		}, nil
	}
	if wager.Status != model.WagerStatusOpen {
		return nil, ErrInstanceNotOpen
	}
	if time.Now().Before(wager.Deadline) {
		return nil, ErrDeadlineNotElapsed
	}

	count, err := s.stakeRepo.CountDistinctUsers(ctx, model.InstanceTypeWager, wagerNo)
	if err != nil {
		return nil, fmt.Errorf("查询参与人数失败: %w", err)
	}
	if count > 1 {
		return nil, ErrNotRefundable
	}

	refundLock := lock.NewRefundLock(s.redisClient, wagerNo, holder)
	if err := refundLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer refundLock.Unlock(ctx)

	wager, err = s.wagerRepo.GetByWagerNo(ctx, wagerNo)
	if err != nil {
		return nil, err
	}
	if wager.Status != model.WagerStatusOpen {
		return &RefundResult{
			InstanceNo: wagerNo,
			Status:     wager.Status,
			Message:    "已处理，请勿重复操作",
		}, nil
	}

	entries, err := s.stakeRepo.ListByInstance(ctx, model.InstanceTypeWager, wagerNo)
	if err != nil {
		return nil, fmt.Errorf("查询押注记录失败: %w", err)
	}

	result, err := s.refundInTx(ctx, model.InstanceTypeWager, wagerNo, entries,
		func(tx *gorm.DB) error {
			return s.wagerRepo.UpdateStatus(ctx, tx, wagerNo, model.WagerStatusOpen, model.WagerStatusRefunded)
		},
		model.TransactionTypeWagerRefund)
	if err != nil {
		return nil, err
	}

	log.Printf("赌局欠额退款完成: wagerNo=%s, refunds=%d", wagerNo, result.RefundCount)
	return result, nil
}

// RefundQuiz 竞答欠额退款
func (s *RefundService) RefundQuiz(ctx context.Context, quizNo string, holder string) (*RefundResult, error) {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return nil, err
	}

	if quiz.Status == model.QuizStatusRefunded || quiz.Status == model.QuizStatusSettled {
		return &RefundResult{
			InstanceNo: quizNo,
			Status:     quiz.Status,
			Message:    "已处理，请勿重复操作",
		}, nil
	}
	if quiz.Status != model.QuizStatusOpen {
		return nil, ErrInstanceNotOpen
	}
	if time.Now().Before(quiz.Deadline) {
		return nil, ErrDeadlineNotElapsed
	}

	count, err := s.stakeRepo.CountDistinctUsers(ctx, model.InstanceTypeQuiz, quizNo)
	if err != nil {
		return nil, fmt.Errorf("查询参与人数失败: %w", err)
	}
	if count > 1 {
		return nil, ErrNotRefundable
	}

	refundLock := lock.NewRefundLock(s.redisClient, quizNo, holder)
	if err := refundLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer refundLock.Unlock(ctx)

	quiz, err = s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizStatusOpen {
		return &RefundResult{
			InstanceNo: quizNo,
			Status:     quiz.Status,
			Message:    "已处理，请勿重复操作",
		}, nil
	}

	entries, err := s.stakeRepo.ListByInstance(ctx, model.InstanceTypeQuiz, quizNo)
	if err != nil {
		return nil, fmt.Errorf("查询报名记录失败: %w", err)
	}

	result, err := s.refundInTx(ctx, model.InstanceTypeQuiz, quizNo, entries,
		func(tx *gorm.DB) error {
			return s.quizRepo.UpdateStatus(ctx, tx, quizNo, model.QuizStatusOpen, model.QuizStatusRefunded)
		},
		model.TransactionTypeQuizRefund)
	if err != nil {
		return nil, err
	}

	log.Printf("竞答欠额退款完成: quizNo=%s, refunds=%d", quizNo, result.RefundCount)
	return result, nil
}

// refundInTx 状态流转 + 逐条退款，同事务
// 参与人数为 0 时只做状态流转
func (s *RefundService) refundInTx(ctx context.Context, instanceType, instanceNo string,
	entries []*model.StakeEntry, transition func(tx *gorm.DB) error, refundType string) (*RefundResult, error) {

	result := &RefundResult{InstanceNo: instanceNo}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := transition(tx); err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.Settled {
				continue
			}
			if err := s.stakeRepo.MarkSettled(ctx, tx, entry.ID); err != nil {
				return err
			}

			account, err := s.accountRepo.GetByUserID(ctx, entry.UserID)
			if err != nil {
				return err
			}
			if err := s.accountRepo.Increase(ctx, tx, entry.UserID, entry.Amount); err != nil {
				return fmt.Errorf("退款入账失败: %w", err)
			}

			transaction := &model.AccountTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        entry.UserID,
				ReferenceNo:   instanceNo,
				Amount:        entry.Amount,
				Type:          refundType,
				BalanceBefore: account.Balance,
				BalanceAfter:  account.Balance + entry.Amount,
				Remark:        fmt.Sprintf("人数不足退款-%s", instanceNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}

			result.RefundCount++
			result.Amount += entry.Amount
		}

		msgPayload := map[string]interface{}{
			"instance_type": instanceType,
			"instance_no":   instanceNo,
			"result":        "REFUNDED",
			"refund_count":  result.RefundCount,
			"amount":        result.Amount,
			"refunded_at":   time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: instanceNo,
			Topic:      s.cfg.Kafka.Topic.SettlementResult,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})
	if err != nil {
		return nil, err
	}

	if instanceType == model.InstanceTypeWager {
		result.Status = model.WagerStatusRefunded
	} else {
		result.Status = model.QuizStatusRefunded
	}
	return result, nil
}
