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
	"wagr/internal/payout"
	"wagr/internal/repository"
	"wagr/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SettleService 结算编排
//
// 【关键点】结算是整个系统最核心的资金操作，必须保证：
//  1. 至多一次：状态机 CAS（RESOLVED -> SETTLED）在派彩事务内执行，
//     并发/重放的第二次结算在 CAS 处失败并整体回滚
//  2. 原子性：状态流转、全部派彩、手续费入账、发件箱消息同事务，
//     中途任何一笔失败全部回滚，赌局留在 RESOLVED 供重试
//  3. 逐条幂等：每条押注记录派彩前先打 settled 标，即使结算被重放，
//     已入账的记录也会被跳过
type SettleService struct {
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

func NewSettleService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettleService {
	return &SettleService{
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

// SettleResult 结算结果
type SettleResult struct {
	InstanceNo  string `json:"instance_no"`
	Status      string `json:"status"`
	Pool        int64  `json:"pool"`
	Fee         int64  `json:"fee"`
	PayoutCount int    `json:"payout_count"`
	Message     string `json:"message,omitempty"`
}

// SettleWager 结算赌局
// holder 是锁持有者标识（请求ID或扫描任务生成的uuid）
func (s *SettleService) SettleWager(ctx context.Context, wagerNo string, holder string) (*SettleResult, error) {
	wager, err := s.wagerRepo.GetByWagerNo(ctx, wagerNo)
	if err != nil {
		return nil, err
	}

	// 幂等：终态直接返回，不报错
	if wager.Status == model.WagerStatusSettled || wager.Status == model.WagerStatusRefunded {
		return &SettleResult{
			InstanceNo: wagerNo,
			Status:     wager.Status,
			Message:    "已结算，请勿重复操作",
		}, nil
	}
	if wager.Status != model.WagerStatusResolved || wager.WinningSide == nil {
		return nil, ErrNotResolved
	}

	settleLock := lock.NewSettleLock(s.redisClient, wagerNo, holder)
	if err := settleLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer settleLock.Unlock(ctx)

	// 获取锁后重新加载，挡掉锁等待期间已完成的结算
	wager, err = s.wagerRepo.GetByWagerNo(ctx, wagerNo)
	if err != nil {
		return nil, err
	}
	if wager.Status != model.WagerStatusResolved {
		return &SettleResult{
			InstanceNo: wagerNo,
			Status:     wager.Status,
			Message:    "已结算，请勿重复操作",
		}, nil
	}

	entries, err := s.stakeRepo.ListByInstance(ctx, model.InstanceTypeWager, wagerNo)
	if err != nil {
		return nil, fmt.Errorf("查询押注记录失败: %w", err)
	}

	snapshot := make([]payout.WagerEntry, 0, len(entries))
	for _, e := range entries {
		snapshot = append(snapshot, payout.WagerEntry{UserID: e.UserID, Side: e.Side, Amount: e.Amount})
	}

	plan := payout.Wager(snapshot, *wager.WinningSide, wager.FeeBps)

	// 胜方无人押注：不抽手续费，全部参与者原额退款
	if plan.NoWinners {
		if err := s.refundAllInTx(ctx, model.InstanceTypeWager, wagerNo, entries,
			model.WagerStatusResolved, model.WagerStatusRefunded, model.TransactionTypeWagerRefund); err != nil {
			return nil, err
		}
		log.Printf("赌局胜方无押注，已全额退款: wagerNo=%s, pool=%d", wagerNo, plan.Pool)
		return &SettleResult{
			InstanceNo: wagerNo,
			Status:     model.WagerStatusRefunded,
			Pool:       plan.Pool,
			Message:    "胜方无人押注，已全额退款",
		}, nil
	}

	err = s.disburseInTx(ctx, model.InstanceTypeWager, wagerNo, entries, plan,
		func(tx *gorm.DB) error {
			return s.wagerRepo.UpdateStatus(ctx, tx, wagerNo, model.WagerStatusResolved, model.WagerStatusSettled)
		},
		model.TransactionTypeWagerWin)
	if err != nil {
		return nil, err
	}

	log.Printf("赌局结算成功: wagerNo=%s, pool=%d, fee=%d, winners=%d",
		wagerNo, plan.Pool, plan.Fee, len(plan.Credits))

	return &SettleResult{
		InstanceNo:  wagerNo,
		Status:      model.WagerStatusSettled,
		Pool:        plan.Pool,
		Fee:         plan.Fee,
		PayoutCount: len(plan.Credits),
	}, nil
}

// SettleQuiz 结算竞答，按创建时选定的方式分账
func (s *SettleService) SettleQuiz(ctx context.Context, quizNo string, holder string) (*SettleResult, error) {
	quiz, err := s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return nil, err
	}

	if quiz.Status == model.QuizStatusSettled || quiz.Status == model.QuizStatusRefunded {
		return &SettleResult{
			InstanceNo: quizNo,
			Status:     quiz.Status,
			Message:    "已结算，请勿重复操作",
		}, nil
	}
	if quiz.Status != model.QuizStatusResolved {
		return nil, ErrNotResolved
	}

	settleLock := lock.NewSettleLock(s.redisClient, quizNo, holder)
	if err := settleLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer settleLock.Unlock(ctx)

	quiz, err = s.quizRepo.GetByQuizNo(ctx, quizNo)
	if err != nil {
		return nil, err
	}
	if quiz.Status != model.QuizStatusResolved {
		return &SettleResult{
			InstanceNo: quizNo,
			Status:     quiz.Status,
			Message:    "已结算，请勿重复操作",
		}, nil
	}

	entries, err := s.stakeRepo.ListByInstance(ctx, model.InstanceTypeQuiz, quizNo)
	if err != nil {
		return nil, fmt.Errorf("查询报名记录失败: %w", err)
	}

	snapshot := make([]payout.QuizEntry, 0, len(entries))
	for _, e := range entries {
		qe := payout.QuizEntry{UserID: e.UserID, Amount: e.Amount, Score: e.Score}
		if e.CompletedAt != nil {
			qe.Completed = true
			qe.CompletedAt = *e.CompletedAt
		}
		snapshot = append(snapshot, qe)
	}

	plan, err := payout.Quiz(snapshot, quiz.Method, quiz.TopWinnerCount, quiz.FeeBps)
	if err != nil {
		return nil, err
	}

	// 无人得分/无人交卷：不抽手续费，报名费全额退回
	if plan.NoWinners {
		if err := s.refundAllInTx(ctx, model.InstanceTypeQuiz, quizNo, entries,
			model.QuizStatusResolved, model.QuizStatusRefunded, model.TransactionTypeQuizRefund); err != nil {
			return nil, err
		}
		log.Printf("竞答无有效胜者，已全额退款: quizNo=%s, pool=%d", quizNo, plan.Pool)
		return &SettleResult{
			InstanceNo: quizNo,
			Status:     model.QuizStatusRefunded,
			Pool:       plan.Pool,
			Message:    "无有效胜者，已全额退款",
		}, nil
	}

	err = s.disburseInTx(ctx, model.InstanceTypeQuiz, quizNo, entries, plan,
		func(tx *gorm.DB) error {
			return s.quizRepo.UpdateStatus(ctx, tx, quizNo, model.QuizStatusResolved, model.QuizStatusSettled)
		},
		model.TransactionTypeQuizWin)
	if err != nil {
		return nil, err
	}

	log.Printf("竞答结算成功: quizNo=%s, method=%s, pool=%d, fee=%d, winners=%d",
		quizNo, quiz.Method, plan.Pool, plan.Fee, len(plan.Credits))

	return &SettleResult{
		InstanceNo:  quizNo,
		Status:      model.QuizStatusSettled,
		Pool:        plan.Pool,
		Fee:         plan.Fee,
		PayoutCount: len(plan.Credits),
	}, nil
}

// disburseInTx 在一个事务内完成状态流转、逐条派彩、手续费入账和发件箱消息
//
// 状态 CAS 放在事务第一步：两个并发事务都走到这里时，后提交的一方
// RowsAffected == 0，整个事务回滚，不会产生第二轮派彩
func (s *SettleService) disburseInTx(ctx context.Context, instanceType, instanceNo string,
	entries []*model.StakeEntry, plan payout.Plan, transition func(tx *gorm.DB) error, creditType string) error {

	// 手续费入账的平台账户必须存在
	if _, err := s.accountRepo.GetOrCreate(ctx, s.cfg.Business.PlatformAccountID); err != nil {
		return fmt.Errorf("获取平台账户失败: %w", err)
	}

	entryByUser := make(map[int64]*model.StakeEntry, len(entries))
	for _, e := range entries {
		entryByUser[e.UserID] = e
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := transition(tx); err != nil {
			return err
		}

		for _, credit := range plan.Credits {
			entry := entryByUser[credit.UserID]
			if entry == nil {
				return repository.ErrStakeNotFound
			}
			// 已入账过的记录跳过（逐条幂等）
			if entry.Settled {
				continue
			}
			if err := s.stakeRepo.MarkSettled(ctx, tx, entry.ID); err != nil {
				return err
			}

			account, err := s.accountRepo.GetByUserID(ctx, credit.UserID)
			if err != nil {
				return err
			}
			if err := s.accountRepo.Increase(ctx, tx, credit.UserID, credit.Amount); err != nil {
				return fmt.Errorf("派彩入账失败: %w", err)
			}

			transaction := &model.AccountTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        credit.UserID,
				ReferenceNo:   instanceNo,
				Amount:        credit.Amount,
				Type:          creditType,
				BalanceBefore: account.Balance,
				BalanceAfter:  account.Balance + credit.Amount,
				Remark:        fmt.Sprintf("结算派彩-%s", instanceNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		// 平台手续费入账（含取整余数）
		if plan.Fee > 0 {
			platformID := s.cfg.Business.PlatformAccountID
			platformAccount, err := s.accountRepo.GetByUserID(ctx, platformID)
			if err != nil {
				return err
			}
			if err := s.accountRepo.Increase(ctx, tx, platformID, plan.Fee); err != nil {
				return fmt.Errorf("手续费入账失败: %w", err)
			}

			feeTrans := &model.AccountTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        platformID,
				ReferenceNo:   instanceNo,
				Amount:        plan.Fee,
				Type:          model.TransactionTypePlatformFee,
				BalanceBefore: platformAccount.Balance,
				BalanceAfter:  platformAccount.Balance + plan.Fee,
				Remark:        fmt.Sprintf("平台手续费-%s", instanceNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, feeTrans); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		return s.writeSettlementOutbox(ctx, tx, instanceType, instanceNo, "SETTLED", plan)
	})
}

// refundAllInTx 无胜者策略：状态流转 + 全部押注原额退回，同事务
func (s *SettleService) refundAllInTx(ctx context.Context, instanceType, instanceNo string,
	entries []*model.StakeEntry, fromStatus, toStatus, refundType string) error {

	transition := func(tx *gorm.DB) error {
		if instanceType == model.InstanceTypeWager {
			return s.wagerRepo.UpdateStatus(ctx, tx, instanceNo, fromStatus, toStatus)
		}
		return s.quizRepo.UpdateStatus(ctx, tx, instanceNo, fromStatus, toStatus)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := transition(tx); err != nil {
			return err
		}

		var pool int64
		for _, entry := range entries {
			pool += entry.Amount
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
				Remark:        fmt.Sprintf("无胜者退款-%s", instanceNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		return s.writeSettlementOutbox(ctx, tx, instanceType, instanceNo, "REFUNDED", payout.Plan{Pool: pool})
	})
}

// writeSettlementOutbox 结算事件写入事务性发件箱，由后台任务异步投递
func (s *SettleService) writeSettlementOutbox(ctx context.Context, tx *gorm.DB,
	instanceType, instanceNo, result string, plan payout.Plan) error {

	msgPayload := map[string]interface{}{
		"instance_type": instanceType,
		"instance_no":   instanceNo,
		"result":        result,
		"pool":          plan.Pool,
		"fee":           plan.Fee,
		"payout_count":  len(plan.Credits),
		"settled_at":    time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(msgPayload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: instanceNo,
		Topic:      s.cfg.Kafka.Topic.SettlementResult,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, outboxMsg)
}
