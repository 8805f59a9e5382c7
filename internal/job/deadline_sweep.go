package job

import (
	"context"
	"log"
	"time"

	"wagr/internal/config"
	"wagr/internal/model"
	"wagr/internal/repository"
	"wagr/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeadlineSweepJob 截止时间扫描任务
//
// 两类工作：
// 1. 已过截止仍 OPEN 的赌局/竞答 —— 人数不足的走退款；人数够的留给裁定流程
// 2. 已裁定（RESOLVED）的赌局/竞答 —— 触发结算（也是结算失败后的重试通道）
//
// 任务可以被外部 cron 并发触发 0 次或多次：每个流转本身幂等，
// 重叠执行最多空转，不会重复动账
type DeadlineSweepJob struct {
	db            *gorm.DB
	redisClient   *redis.Client
	cfg           *config.Config
	wagerRepo     *repository.WagerRepository
	quizRepo      *repository.QuizRepository
	stakeRepo     *repository.StakeRepository
	settleService *service.SettleService
	refundService *service.RefundService
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewDeadlineSweepJob(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *DeadlineSweepJob {
	interval := time.Duration(cfg.Business.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.Business.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &DeadlineSweepJob{
		db:            db,
		redisClient:   redisClient,
		cfg:           cfg,
		wagerRepo:     repository.NewWagerRepository(db),
		quizRepo:      repository.NewQuizRepository(db),
		stakeRepo:     repository.NewStakeRepository(db),
		settleService: service.NewSettleService(db, redisClient, cfg),
		refundService: service.NewRefundService(db, redisClient, cfg),
		stopCh:        make(chan struct{}),
		interval:      interval,
		batchSize:     batchSize,
	}
}

func (j *DeadlineSweepJob) Start(ctx context.Context) {
	log.Println("[DeadlineSweepJob] 截止时间扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DeadlineSweepJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[DeadlineSweepJob] 任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *DeadlineSweepJob) Stop() {
	close(j.stopCh)
}

// RunOnce 执行一轮扫描，定时器和 HTTP 管理接口共用
func (j *DeadlineSweepJob) RunOnce(ctx context.Context) {
	j.sweepExpiredWagers(ctx)
	j.sweepExpiredQuizzes(ctx)
	j.sweepResolvedWagers(ctx)
	j.sweepResolvedQuizzes(ctx)
}

func (j *DeadlineSweepJob) sweepExpiredWagers(ctx context.Context) {
	wagers, err := j.wagerRepo.GetExpiredOpen(ctx, j.batchSize)
	if err != nil {
		log.Printf("[DeadlineSweepJob] 查询过期赌局失败: %v", err)
		return
	}

	for _, wager := range wagers {
		count, err := j.stakeRepo.CountDistinctUsers(ctx, model.InstanceTypeWager, wager.WagerNo)
		if err != nil {
			log.Printf("[DeadlineSweepJob] 查询参与人数失败: wagerNo=%s, err=%v", wager.WagerNo, err)
			continue
		}
		if count > 1 {
			// 人数够，等创建者裁定胜方
			continue
		}

		if _, err := j.refundService.RefundWager(ctx, wager.WagerNo, uuid.NewString()); err != nil {
			log.Printf("[DeadlineSweepJob] 赌局退款失败: wagerNo=%s, err=%v", wager.WagerNo, err)
			continue
		}
		log.Printf("[DeadlineSweepJob] 过期赌局已退款: wagerNo=%s, participants=%d", wager.WagerNo, count)
	}
}

func (j *DeadlineSweepJob) sweepExpiredQuizzes(ctx context.Context) {
	quizzes, err := j.quizRepo.GetExpiredOpen(ctx, j.batchSize)
	if err != nil {
		log.Printf("[DeadlineSweepJob] 查询过期竞答失败: %v", err)
		return
	}

	for _, quiz := range quizzes {
		count, err := j.stakeRepo.CountDistinctUsers(ctx, model.InstanceTypeQuiz, quiz.QuizNo)
		if err != nil {
			log.Printf("[DeadlineSweepJob] 查询参与人数失败: quizNo=%s, err=%v", quiz.QuizNo, err)
			continue
		}
		if count > 1 {
			continue
		}

		if _, err := j.refundService.RefundQuiz(ctx, quiz.QuizNo, uuid.NewString()); err != nil {
			log.Printf("[DeadlineSweepJob] 竞答退款失败: quizNo=%s, err=%v", quiz.QuizNo, err)
			continue
		}
		log.Printf("[DeadlineSweepJob] 过期竞答已退款: quizNo=%s, participants=%d", quiz.QuizNo, count)
	}
}

// sweepResolvedWagers 结算补偿：管理接口结算失败/进程中途崩溃的
// RESOLVED 赌局在这里被重新拾起
func (j *DeadlineSweepJob) sweepResolvedWagers(ctx context.Context) {
	wagers, err := j.wagerRepo.GetResolved(ctx, j.batchSize)
	if err != nil {
		log.Printf("[DeadlineSweepJob] 查询待结算赌局失败: %v", err)
		return
	}

	for _, wager := range wagers {
		result, err := j.settleService.SettleWager(ctx, wager.WagerNo, uuid.NewString())
		if err != nil {
			log.Printf("[DeadlineSweepJob] 赌局结算失败: wagerNo=%s, err=%v", wager.WagerNo, err)
			continue
		}
		log.Printf("[DeadlineSweepJob] 赌局结算完成: wagerNo=%s, status=%s", wager.WagerNo, result.Status)
	}
}

func (j *DeadlineSweepJob) sweepResolvedQuizzes(ctx context.Context) {
	quizzes, err := j.quizRepo.GetResolved(ctx, j.batchSize)
	if err != nil {
		log.Printf("[DeadlineSweepJob] 查询待结算竞答失败: %v", err)
		return
	}

	for _, quiz := range quizzes {
		result, err := j.settleService.SettleQuiz(ctx, quiz.QuizNo, uuid.NewString())
		if err != nil {
			log.Printf("[DeadlineSweepJob] 竞答结算失败: quizNo=%s, err=%v", quiz.QuizNo, err)
			continue
		}
		log.Printf("[DeadlineSweepJob] 竞答结算完成: quizNo=%s, status=%s", quiz.QuizNo, result.Status)
	}
}
