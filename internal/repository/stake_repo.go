package repository

import (
	"context"
	"errors"
	"time"

	"wagr/internal/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrDuplicateStake   = errors.New("已参与过，不可重复押注")
	ErrStakeNotFound    = errors.New("押注记录不存在")
	ErrAlreadyDisbursed = errors.New("该押注已完成派彩")
	ErrAlreadySubmitted = errors.New("已交卷，不可重复提交")
)

const mysqlDuplicateEntry = 1062

type StakeRepository struct {
	db *gorm.DB
}

func NewStakeRepository(db *gorm.DB) *StakeRepository {
	return &StakeRepository{db: db}
}

// Create 写入押注记录
//
// 【关键点】重复参与的最终防线是 (instance_type, instance_no, user_id)
// 唯一索引：两个并发请求同时通过了服务层预检时，第二条 INSERT 会在这里
// 被数据库拒绝并映射为 ErrDuplicateStake，连带整个参与事务回滚
func (r *StakeRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.StakeEntry) error {
	if tx == nil {
		tx = r.db
	}

	err := tx.WithContext(ctx).Create(entry).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateStake
		}
		return err
	}
	return nil
}

func (r *StakeRepository) GetByInstanceAndUser(ctx context.Context, instanceType, instanceNo string, userID int64) (*model.StakeEntry, error) {
	var entry model.StakeEntry
	err := r.db.WithContext(ctx).
		Where("instance_type = ? AND instance_no = ? AND user_id = ?", instanceType, instanceNo, userID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *StakeRepository) ListByInstance(ctx context.Context, instanceType, instanceNo string) ([]*model.StakeEntry, error) {
	var entries []*model.StakeEntry
	err := r.db.WithContext(ctx).
		Where("instance_type = ? AND instance_no = ?", instanceType, instanceNo).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// CountDistinctUsers 统计参与人数（按用户去重）
func (r *StakeRepository) CountDistinctUsers(ctx context.Context, instanceType, instanceNo string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.StakeEntry{}).
		Where("instance_type = ? AND instance_no = ?", instanceType, instanceNo).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

// MarkSettled 派彩打标
//
// 【关键点】WHERE settled = false 的 CAS：同一条押注只会成功打标一次，
// 结算事务重放时已打标的记录会被跳过，派彩因此逐条幂等
func (r *StakeRepository) MarkSettled(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.StakeEntry{}).
		Where("id = ? AND settled = ?", id, false).
		Update("settled", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyDisbursed
	}
	return nil
}

// SubmitAnswers 竞答交卷：写入答案、得分和交卷时间，只允许交一次
func (r *StakeRepository) SubmitAnswers(ctx context.Context, tx *gorm.DB, id int64, answers string, score int) error {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.StakeEntry{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"answers":      answers,
			"score":        score,
			"completed_at": &now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadySubmitted
	}
	return nil
}

// UpdateAmount 创建者改押注时同步修改其押注记录金额
func (r *StakeRepository) UpdateAmount(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.StakeEntry{}).
		Where("id = ?", id).
		Update("amount", amount).Error
}

// DeleteByInstance 删除某实例的全部押注记录（仅限删除赌局时使用）
func (r *StakeRepository) DeleteByInstance(ctx context.Context, tx *gorm.DB, instanceType, instanceNo string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Where("instance_type = ? AND instance_no = ?", instanceType, instanceNo).
		Delete(&model.StakeEntry{}).Error
}
