package repository

import (
	"context"
	"errors"
	"time"

	"wagr/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWagerNotFound      = errors.New("赌局不存在")
	ErrWagerStatusInvalid = errors.New("赌局状态不合法")
	ErrOutcomeAlreadySet  = errors.New("胜方已裁定，不可重复设置")
)

type WagerRepository struct {
	db *gorm.DB
}

func NewWagerRepository(db *gorm.DB) *WagerRepository {
	return &WagerRepository{db: db}
}

func (r *WagerRepository) Create(ctx context.Context, tx *gorm.DB, wager *model.Wager) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(wager).Error
}

func (r *WagerRepository) GetByWagerNo(ctx context.Context, wagerNo string) (*model.Wager, error) {
	var wager model.Wager
	err := r.db.WithContext(ctx).Where("wager_no = ?", wagerNo).First(&wager).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWagerNotFound
		}
		return nil, err
	}
	return &wager, nil
}

func (r *WagerRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Wager, error) {
	var wager model.Wager
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&wager).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wager, nil
}

// UpdateStatus 状态流转
//
// 【关键点】WHERE 带上 fromStatus 做 CAS：并发的两次相同流转只有一次生效，
// 这是结算"至多一次"保证的最终依据，Redis 锁只是挡并发的快路径
func (r *WagerRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, wagerNo string, fromStatus, toStatus string) error {
	if !model.CanWagerTransitionTo(fromStatus, toStatus) {
		return ErrWagerStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.WagerStatusResolved:
		updates["resolved_at"] = &now
	case model.WagerStatusSettled, model.WagerStatusRefunded:
		updates["settled_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.Wager{}).
		Where("wager_no = ? AND status = ?", wagerNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWagerStatusInvalid
	}

	return nil
}

// SetOutcome 裁定胜方：OPEN -> RESOLVED，胜方字段只允许写一次
func (r *WagerRepository) SetOutcome(ctx context.Context, wagerNo string, winningSide string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.Wager{}).
		Where("wager_no = ? AND status = ? AND winning_side IS NULL", wagerNo, model.WagerStatusOpen).
		Updates(map[string]interface{}{
			"status":       model.WagerStatusResolved,
			"winning_side": winningSide,
			"resolved_at":  &now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		wager, err := r.GetByWagerNo(ctx, wagerNo)
		if err != nil {
			return err
		}
		if wager.WinningSide != nil {
			return ErrOutcomeAlreadySet
		}
		return ErrWagerStatusInvalid
	}

	return nil
}

// UpdateStakeAmount 创建者修改押注金额，仅 OPEN 状态允许
// 是否只有创建者一人参与由服务层在事务内校验
func (r *WagerRepository) UpdateStakeAmount(ctx context.Context, tx *gorm.DB, wagerNo string, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Wager{}).
		Where("wager_no = ? AND status = ?", wagerNo, model.WagerStatusOpen).
		Update("stake_amount", amount)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWagerStatusInvalid
	}
	return nil
}

func (r *WagerRepository) Delete(ctx context.Context, tx *gorm.DB, wagerNo string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("wager_no = ?", wagerNo).Delete(&model.Wager{}).Error
}

// GetExpiredOpen 查询已过截止时间仍在 OPEN 状态的赌局（退款扫描用）
func (r *WagerRepository) GetExpiredOpen(ctx context.Context, limit int) ([]*model.Wager, error) {
	var wagers []*model.Wager
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", model.WagerStatusOpen, time.Now()).
		Limit(limit).
		Find(&wagers).Error
	return wagers, err
}

// GetResolved 查询待结算的赌局（结算重试扫描用）
func (r *WagerRepository) GetResolved(ctx context.Context, limit int) ([]*model.Wager, error) {
	var wagers []*model.Wager
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WagerStatusResolved).
		Limit(limit).
		Find(&wagers).Error
	return wagers, err
}

func (r *WagerRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Wager, int64, error) {
	var wagers []*model.Wager
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Wager{}).Where("creator_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&wagers).Error

	return wagers, total, err
}
