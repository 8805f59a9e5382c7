package service

import (
	"context"
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

// WagerService 赌局服务：创建、参与、裁定，以及开局前的修改/删除
type WagerService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	wagerRepo       *repository.WagerRepository
	stakeRepo       *repository.StakeRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewWagerService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *WagerService {
	return &WagerService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		wagerRepo:       repository.NewWagerRepository(db),
		stakeRepo:       repository.NewStakeRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type CreateWagerRequest struct {
	RequestID   string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	CreatorID   int64  `json:"creator_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	StakeAmount int64  `json:"stake_amount" binding:"required,gt=0"`
	Side        string `json:"side" binding:"required"`     // 创建者押的一边
	Deadline    int64  `json:"deadline" binding:"required"` // Unix 秒
	FeeBps      int    `json:"fee_bps"`                     // 0 时使用配置默认值
}

// CreateWager 创建赌局
// 创建者在创建时即押注自己选的一边：建赌局、扣款、写流水、写押注记录
// 在同一事务内完成
func (s *WagerService) CreateWager(ctx context.Context, req *CreateWagerRequest) (*model.Wager, error) {
	// 幂等校验
	existing, err := s.wagerRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询赌局失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if !model.IsValidWagerSide(req.Side) {
		return nil, errors.New("押注方向不合法")
	}

	deadline := time.Unix(req.Deadline, 0)
	if !deadline.After(time.Now()) {
		return nil, errors.New("截止时间必须晚于当前时间")
	}

	feeBps := req.FeeBps
	if feeBps <= 0 {
		feeBps = s.cfg.Business.WagerFeeBps
	}

	account, err := s.accountRepo.GetOrCreate(ctx, req.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("获取账户信息失败: %w", err)
	}
	if account.Balance < req.StakeAmount {
		return nil, repository.ErrInsufficientFunds
	}

	wager := &model.Wager{
		WagerNo:     idgen.GenerateWagerNo(),
		RequestID:   req.RequestID,
		CreatorID:   req.CreatorID,
		Title:       req.Title,
		StakeAmount: req.StakeAmount,
		FeeBps:      feeBps,
		Status:      model.WagerStatusOpen,
		Deadline:    deadline,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.wagerRepo.Create(ctx, tx, wager); err != nil {
			return fmt.Errorf("创建赌局失败: %w", err)
		}
		return s.joinInTx(ctx, tx, wager, account, req.CreatorID, req.Side)
	})

	if err != nil {
		return nil, err
	}

	log.Printf("赌局创建成功: wagerNo=%s, creatorID=%d, stake=%d", wager.WagerNo, req.CreatorID, req.StakeAmount)
	return wager, nil
}

type JoinWagerRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	WagerNo   string `json:"wager_no" binding:"required"`
	UserID    int64  `json:"user_id" binding:"required"`
	Side      string `json:"side" binding:"required"`
}

// Join 参与赌局
//
// 【关键点】参与是双写操作（扣余额 + 插押注），必须保证：
// 1. 幂等性：同一用户对同一赌局只能有一条押注，由唯一索引兜底
// 2. 原子性：扣款、流水、押注记录同事务，任何一步失败全部回滚
// 3. 并发安全：按用户加分布式锁 + 余额条件扣减，防止并发穿透
func (s *WagerService) Join(ctx context.Context, req *JoinWagerRequest) error {
	wager, err := s.wagerRepo.GetByWagerNo(ctx, req.WagerNo)
	if err != nil {
		return err
	}

	if !model.IsValidWagerSide(req.Side) {
		return errors.New("押注方向不合法")
	}

	// 任何资金变动之前的状态预检
	if wager.Status != model.WagerStatusOpen {
		return ErrInstanceNotOpen
	}
	if time.Now().After(wager.Deadline) {
		return ErrDeadlineElapsed
	}

	existing, err := s.stakeRepo.GetByInstanceAndUser(ctx, model.InstanceTypeWager, req.WagerNo, req.UserID)
	if err != nil {
		return fmt.Errorf("查询押注记录失败: %w", err)
	}
	if existing != nil {
		return repository.ErrDuplicateStake
	}

	// 获取分布式锁（按用户维度），串行化同一用户的并发参与
	joinLock := lock.NewJoinLock(s.redisClient, req.UserID, req.RequestID)
	if err := joinLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer joinLock.Unlock(ctx)

	account, err := s.accountRepo.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("获取账户信息失败: %w", err)
	}
	if account.Balance < wager.StakeAmount {
		return repository.ErrInsufficientFunds
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.joinInTx(ctx, tx, wager, account, req.UserID, req.Side)
	})
	if err != nil {
		return err
	}

	log.Printf("参与赌局成功: wagerNo=%s, userID=%d, side=%s, amount=%d",
		req.WagerNo, req.UserID, req.Side, wager.StakeAmount)
	return nil
}

// joinInTx 在事务内完成一次押注：条件扣款 -> 写流水 -> 插押注记录
func (s *WagerService) joinInTx(ctx context.Context, tx *gorm.DB, wager *model.Wager, account *model.Account, userID int64, side string) error {
	if err := s.accountRepo.Deduct(ctx, tx, userID, wager.StakeAmount, account.Version); err != nil {
		return err
	}

	transaction := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		ReferenceNo:   wager.WagerNo,
		Amount:        -wager.StakeAmount,
		Type:          model.TransactionTypeWagerJoin,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance - wager.StakeAmount,
		Remark:        fmt.Sprintf("押注-%s-%s边", wager.WagerNo, side),
	}
	if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}

	entry := &model.StakeEntry{
		InstanceType: model.InstanceTypeWager,
		InstanceNo:   wager.WagerNo,
		UserID:       userID,
		Side:         side,
		Amount:       wager.StakeAmount,
	}
	if err := s.stakeRepo.Create(ctx, tx, entry); err != nil {
		return err
	}

	return nil
}

// SetOutcome 裁定胜方
// 仅创建者可操作，且必须已过截止时间；胜方只能写一次
func (s *WagerService) SetOutcome(ctx context.Context, wagerNo string, actorID int64, winningSide string) error {
	wager, err := s.wagerRepo.GetByWagerNo(ctx, wagerNo)
	if err != nil {
		return err
	}

	if wager.CreatorID != actorID {
		return ErrNotCreator
	}
	if !model.IsValidWagerSide(winningSide) {
		return errors.New("押注方向不合法")
	}
	if time.Now().Before(wager.Deadline) {
		return ErrDeadlineNotElapsed
	}

	if err := s.wagerRepo.SetOutcome(ctx, wagerNo, winningSide); err != nil {
		return err
	}

	log.Printf("赌局已裁定: wagerNo=%s, winningSide=%s", wagerNo, winningSide)
	return nil
}

type UpdateWagerRequest struct {
	WagerNo     string `json:"wager_no" binding:"required"`
	UserID      int64  `json:"user_id" binding:"required"`
	StakeAmount int64  `json:"stake_amount" binding:"required,gt=0"`
}

// UpdateStake 创建者修改押注金额
// 只允许在没有任何其他用户参与时修改；差额在同一事务内补扣或退回
func (s *WagerService) UpdateStake(ctx context.Context, req *UpdateWagerRequest) error {
	wager, err := s.wagerRepo.GetByWagerNo(ctx, req.WagerNo)
	if err != nil {
		return err
	}

	if wager.CreatorID != req.UserID {
		return ErrNotCreator
	}
	if wager.Status != model.WagerStatusOpen {
		return ErrInstanceNotOpen
	}

	count, err := s.stakeRepo.CountDistinctUsers(ctx, model.InstanceTypeWager, req.WagerNo)
	if err != nil {
		return fmt.Errorf("查询参与人数失败: %w", err)
	}
	if count > 1 {
		return ErrInstanceLocked
	}

	entry, err := s.stakeRepo.GetByInstanceAndUser(ctx, model.InstanceTypeWager, req.WagerNo, req.UserID)
	if err != nil {
		return fmt.Errorf("查询押注记录失败: %w", err)
	}
	if entry == nil {
		return repository.ErrStakeNotFound
	}

	diff := req.StakeAmount - wager.StakeAmount
	if diff == 0 {
		return nil
	}

	account, err := s.accountRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if diff > 0 && account.Balance < diff {
		return repository.ErrInsufficientFunds
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if diff > 0 {
			if err := s.accountRepo.Deduct(ctx, tx, req.UserID, diff, account.Version); err != nil {
				return err
			}
		} else {
			if err := s.accountRepo.Increase(ctx, tx, req.UserID, -diff); err != nil {
				return err
			}
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        req.UserID,
			ReferenceNo:   req.WagerNo,
			Amount:        -diff,
			Type:          model.TransactionTypeWagerEdit,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance - diff,
			Remark:        fmt.Sprintf("修改押注-%s", req.WagerNo),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.wagerRepo.UpdateStakeAmount(ctx, tx, req.WagerNo, req.StakeAmount); err != nil {
			return err
		}
		return s.stakeRepo.UpdateAmount(ctx, tx, entry.ID, req.StakeAmount)
	})
	if err != nil {
		return err
	}

	log.Printf("押注金额已修改: wagerNo=%s, amount=%d", req.WagerNo, req.StakeAmount)
	return nil
}

// DeleteWager 创建者删除赌局
// 只允许在没有任何其他用户参与时删除；创建者押注原额退回
func (s *WagerService) DeleteWager(ctx context.Context, wagerNo string, userID int64) error {
	wager, err := s.wagerRepo.GetByWagerNo(ctx, wagerNo)
	if err != nil {
		return err
	}

	if wager.CreatorID != userID {
		return ErrNotCreator
	}
	if wager.Status != model.WagerStatusOpen {
		return ErrInstanceNotOpen
	}

	count, err := s.stakeRepo.CountDistinctUsers(ctx, model.InstanceTypeWager, wagerNo)
	if err != nil {
		return fmt.Errorf("查询参与人数失败: %w", err)
	}
	if count > 1 {
		return ErrInstanceLocked
	}

	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Increase(ctx, tx, userID, wager.StakeAmount); err != nil {
			return err
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			ReferenceNo:   wagerNo,
			Amount:        wager.StakeAmount,
			Type:          model.TransactionTypeWagerRefund,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + wager.StakeAmount,
			Remark:        fmt.Sprintf("删除赌局退款-%s", wagerNo),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.stakeRepo.DeleteByInstance(ctx, tx, model.InstanceTypeWager, wagerNo); err != nil {
			return err
		}
		return s.wagerRepo.Delete(ctx, tx, wagerNo)
	})
	if err != nil {
		return err
	}

	log.Printf("赌局已删除: wagerNo=%s", wagerNo)
	return nil
}

func (s *WagerService) GetWager(ctx context.Context, wagerNo string) (*model.Wager, error) {
	return s.wagerRepo.GetByWagerNo(ctx, wagerNo)
}

func (s *WagerService) ListStakes(ctx context.Context, wagerNo string) ([]*model.StakeEntry, error) {
	return s.stakeRepo.ListByInstance(ctx, model.InstanceTypeWager, wagerNo)
}

func (s *WagerService) ListUserWagers(ctx context.Context, userID int64, page, pageSize int) ([]*model.Wager, int64, error) {
	return s.wagerRepo.ListByUserID(ctx, userID, page, pageSize)
}
