package repository

import (
	"context"
	"errors"
	"time"

	"wagr/internal/model"

	"gorm.io/gorm"
)

var (
	ErrQuizNotFound      = errors.New("竞答不存在")
	ErrQuizStatusInvalid = errors.New("竞答状态不合法")
)

type QuizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (r *QuizRepository) Create(ctx context.Context, tx *gorm.DB, quiz *model.Quiz) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) GetByQuizNo(ctx context.Context, quizNo string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.WithContext(ctx).Where("quiz_no = ?", quizNo).First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quiz, nil
}

// UpdateStatus 状态流转，CAS 语义与赌局一致
func (r *QuizRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, quizNo string, fromStatus, toStatus string) error {
	if !model.CanQuizTransitionTo(fromStatus, toStatus) {
		return ErrQuizStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.QuizStatusResolved:
		updates["resolved_at"] = &now
	case model.QuizStatusSettled, model.QuizStatusRefunded:
		updates["settled_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.Quiz{}).
		Where("quiz_no = ? AND status = ?", quizNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrQuizStatusInvalid
	}

	return nil
}

// GetExpiredOpen 查询已过报名截止仍在 OPEN 状态的竞答
func (r *QuizRepository) GetExpiredOpen(ctx context.Context, limit int) ([]*model.Quiz, error) {
	var quizzes []*model.Quiz
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", model.QuizStatusOpen, time.Now()).
		Limit(limit).
		Find(&quizzes).Error
	return quizzes, err
}

// GetResolved 查询待结算的竞答
func (r *QuizRepository) GetResolved(ctx context.Context, limit int) ([]*model.Quiz, error) {
	var quizzes []*model.Quiz
	err := r.db.WithContext(ctx).
		Where("status = ?", model.QuizStatusResolved).
		Limit(limit).
		Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Quiz, int64, error) {
	var quizzes []*model.Quiz
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Quiz{}).Where("creator_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&quizzes).Error

	return quizzes, total, err
}
