package service

import (
	"context"
	"fmt"

	"wagr/internal/model"
	"wagr/internal/repository"
	"wagr/pkg/idgen"

	"gorm.io/gorm"
)

// AccountService 账户服务
// 充值/提现对应支付网关确认后的入账出账，转账是站内用户间划转。
// 所有资金变动都走 AccountRepository 的原子增减，并在同一事务内写流水
type AccountService struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		if err == repository.ErrAccountNotFound {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accountRepo.GetOrCreate(ctx, userID)
}

// Deposit 充值入账
// 由支付网关回调触发，gatewayRef 是网关侧流水号，同一笔回调重放时
// 靠它做幂等：已有同号充值流水直接返回成功
func (s *AccountService) Deposit(ctx context.Context, userID int64, amount int64, gatewayRef string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	existing, err := s.transactionRepo.GetByUserAndReference(ctx, userID, gatewayRef, model.TransactionTypeDeposit)
	if err != nil {
		return fmt.Errorf("查询流水失败: %w", err)
	}
	if existing != nil {
		return nil
	}

	account, err := s.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			ReferenceNo:   gatewayRef,
			Amount:        amount,
			Type:          model.TransactionTypeDeposit,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + amount,
			Remark:        fmt.Sprintf("充值-%s", gatewayRef),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return nil
	})
}

// Withdraw 提现出账
// 余额校验和扣减是同一条条件 UPDATE，并发提现不会把余额扣成负数
func (s *AccountService) Withdraw(ctx context.Context, userID int64, amount int64, gatewayRef string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	existing, err := s.transactionRepo.GetByUserAndReference(ctx, userID, gatewayRef, model.TransactionTypeWithdrawal)
	if err != nil {
		return fmt.Errorf("查询流水失败: %w", err)
	}
	if existing != nil {
		return nil
	}

	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Deduct(ctx, tx, userID, amount, account.Version); err != nil {
			return err
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			ReferenceNo:   gatewayRef,
			Amount:        -amount,
			Type:          model.TransactionTypeWithdrawal,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance - amount,
			Remark:        fmt.Sprintf("提现-%s", gatewayRef),
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return nil
	})
}

// Transfer 站内转账
// 出账入账和两条流水在同一事务内完成，要么都成功要么都回滚
func (s *AccountService) Transfer(ctx context.Context, fromUserID, toUserID int64, amount int64, requestID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	existing, err := s.transactionRepo.GetByUserAndReference(ctx, fromUserID, requestID, model.TransactionTypeTransferOut)
	if err != nil {
		return fmt.Errorf("查询流水失败: %w", err)
	}
	if existing != nil {
		return nil
	}

	fromAccount, err := s.accountRepo.GetByUserID(ctx, fromUserID)
	if err != nil {
		return err
	}

	toAccount, err := s.accountRepo.GetOrCreate(ctx, toUserID)
	if err != nil {
		return err
	}

	transactionNo := idgen.GenerateTransactionNo()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Deduct(ctx, tx, fromUserID, amount, fromAccount.Version); err != nil {
			return err
		}

		if err := s.accountRepo.Increase(ctx, tx, toUserID, amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}

		outTrans := &model.AccountTransaction{
			TransactionNo: transactionNo + "-out",
			UserID:        fromUserID,
			ReferenceNo:   requestID,
			Amount:        -amount,
			Type:          model.TransactionTypeTransferOut,
			BalanceBefore: fromAccount.Balance,
			BalanceAfter:  fromAccount.Balance - amount,
			Remark:        fmt.Sprintf("转账给用户%d", toUserID),
		}
		if err := s.transactionRepo.Create(ctx, tx, outTrans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		inTrans := &model.AccountTransaction{
			TransactionNo: transactionNo + "-in",
			UserID:        toUserID,
			ReferenceNo:   requestID,
			Amount:        amount,
			Type:          model.TransactionTypeTransferIn,
			BalanceBefore: toAccount.Balance,
			BalanceAfter:  toAccount.Balance + amount,
			Remark:        fmt.Sprintf("来自用户%d的转账", fromUserID),
		}
		if err := s.transactionRepo.Create(ctx, tx, inTrans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return nil
	})
}

func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
