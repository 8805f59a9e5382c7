package handler

import (
	"errors"
	"strconv"

	"wagr/internal/config"
	"wagr/internal/job"
	"wagr/internal/repository"
	"wagr/internal/service"
	"wagr/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService *service.AccountService
	wagerService   *service.WagerService
	quizService    *service.QuizService
	settleService  *service.SettleService
	refundService  *service.RefundService
	sweepJob       *job.DeadlineSweepJob
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, sweepJob *job.DeadlineSweepJob) *Handler {
	return &Handler{
		accountService: service.NewAccountService(db),
		wagerService:   service.NewWagerService(db, rdb, cfg),
		quizService:    service.NewQuizService(db, rdb, cfg),
		settleService:  service.NewSettleService(db, rdb, cfg),
		refundService:  service.NewRefundService(db, rdb, cfg),
		sweepJob:       sweepJob,
	}
}

// respondError 业务错误到稳定错误码的映射
// 调用方只依赖 code 区分提示文案，message 仅用于排查
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, repository.ErrDuplicateStake), errors.Is(err, repository.ErrAlreadySubmitted):
		response.BusinessError(c, response.CodeDuplicateStake, err.Error())
	case errors.Is(err, repository.ErrConcurrentModification):
		response.BusinessError(c, response.CodeConcurrentModification, err.Error())
	case errors.Is(err, repository.ErrOutcomeAlreadySet):
		response.BusinessError(c, response.CodeOutcomeAlreadySet, err.Error())
	case errors.Is(err, repository.ErrWagerNotFound),
		errors.Is(err, repository.ErrQuizNotFound),
		errors.Is(err, repository.ErrStakeNotFound):
		response.BusinessError(c, response.CodeInstanceNotFound, err.Error())
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, service.ErrInstanceNotOpen),
		errors.Is(err, service.ErrNotResolved),
		errors.Is(err, repository.ErrWagerStatusInvalid),
		errors.Is(err, repository.ErrQuizStatusInvalid):
		response.BusinessError(c, response.CodeInstanceNotOpen, err.Error())
	case errors.Is(err, service.ErrDeadlineNotElapsed), errors.Is(err, service.ErrDeadlineElapsed):
		response.BusinessError(c, response.CodeDeadlineNotElapsed, err.Error())
	case errors.Is(err, service.ErrAlreadySettled):
		response.BusinessError(c, response.CodeAlreadySettled, err.Error())
	case errors.Is(err, service.ErrInstanceLocked),
		errors.Is(err, service.ErrNotCreator),
		errors.Is(err, service.ErrNotRefundable):
		response.BusinessError(c, response.CodeInstanceLocked, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":  account.UserID,
		"balance":  account.Balance,
		"currency": account.Currency,
	})
}

// DepositRequest 充值入账请求（支付网关确认后回调）
type DepositRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	GatewayRef string `json:"gateway_ref" binding:"required"` // 网关侧流水号，幂等依据
}

// Deposit 充值入账
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Deposit(c.Request.Context(), req.UserID, req.Amount, req.GatewayRef); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "入账成功"})
}

// WithdrawRequest 提现出账请求
type WithdrawRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	GatewayRef string `json:"gateway_ref" binding:"required"`
}

// Withdraw 提现出账
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Withdraw(c.Request.Context(), req.UserID, req.Amount, req.GatewayRef); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "出账成功"})
}

// TransferRequest 站内转账请求
type TransferRequest struct {
	RequestID  string `json:"request_id" binding:"required"` // 幂等ID
	FromUserID int64  `json:"from_user_id" binding:"required"`
	ToUserID   int64  `json:"to_user_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// Transfer 站内转账
// POST /api/v1/account/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Transfer(c.Request.Context(), req.FromUserID, req.ToUserID, req.Amount, req.RequestID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "转账成功"})
}

// ListTransactions 查询用户流水
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 赌局相关接口
// ============================================================

// CreateWager 创建赌局（创建者同时押注）
// POST /api/v1/wager/create
func (h *Handler) CreateWager(c *gin.Context) {
	var req service.CreateWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	wager, err := h.wagerService.CreateWager(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"wager_no":     wager.WagerNo,
		"status":       wager.Status,
		"stake_amount": wager.StakeAmount,
		"deadline":     wager.Deadline,
	})
}

// JoinWager 参与赌局
// POST /api/v1/wager/join
//
// 【关键点】参与必须保证：
// 1. 幂等性：同一用户对同一赌局只能押一次
// 2. 原子性：余额扣减、流水记录、押注记录必须同时成功或同时失败
// 3. 并发安全：分布式锁 + 条件扣减 + 唯一索引三层防线
func (h *Handler) JoinWager(c *gin.Context) {
	var req service.JoinWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.wagerService.Join(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "参与成功"})
}

// GetWager 查询赌局详情（含押注列表）
// GET /api/v1/wager/detail?wager_no=xxx
func (h *Handler) GetWager(c *gin.Context) {
	wagerNo := c.Query("wager_no")
	if wagerNo == "" {
		response.ParamError(c, "wager_no 参数不能为空")
		return
	}

	wager, err := h.wagerService.GetWager(c.Request.Context(), wagerNo)
	if err != nil {
		respondError(c, err)
		return
	}

	stakes, err := h.wagerService.ListStakes(c.Request.Context(), wagerNo)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"wager":  wager,
		"stakes": stakes,
	})
}

// ListWagers 查询用户创建的赌局列表
// GET /api/v1/wager/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListWagers(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	wagers, total, err := h.wagerService.ListUserWagers(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      wagers,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SetOutcomeRequest 裁定胜方请求
type SetOutcomeRequest struct {
	WagerNo     string `json:"wager_no" binding:"required"`
	UserID      int64  `json:"user_id" binding:"required"`
	WinningSide string `json:"winning_side" binding:"required"`
}

// SetWagerOutcome 裁定胜方
// POST /api/v1/wager/outcome
func (h *Handler) SetWagerOutcome(c *gin.Context) {
	var req SetOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.wagerService.SetOutcome(c.Request.Context(), req.WagerNo, req.UserID, req.WinningSide); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "裁定成功"})
}

// SettleWagerRequest 结算请求
type SettleWagerRequest struct {
	WagerNo   string `json:"wager_no" binding:"required"`
	RequestID string `json:"request_id" binding:"required"` // 幂等性ID
}

// SettleWager 结算赌局
// POST /api/v1/wager/settle
func (h *Handler) SettleWager(c *gin.Context) {
	var req SettleWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settleService.SettleWager(c.Request.Context(), req.WagerNo, req.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateWager 创建者修改押注金额（仅限无他人参与时）
// POST /api/v1/wager/update
func (h *Handler) UpdateWager(c *gin.Context) {
	var req service.UpdateWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.wagerService.UpdateStake(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "修改成功"})
}

// DeleteWagerRequest 删除赌局请求
type DeleteWagerRequest struct {
	WagerNo string `json:"wager_no" binding:"required"`
	UserID  int64  `json:"user_id" binding:"required"`
}

// DeleteWager 删除赌局（仅限无他人参与时，创建者押注退回）
// POST /api/v1/wager/delete
func (h *Handler) DeleteWager(c *gin.Context) {
	var req DeleteWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.wagerService.DeleteWager(c.Request.Context(), req.WagerNo, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "删除成功"})
}

// RefundWagerRequest 欠额退款请求
type RefundWagerRequest struct {
	WagerNo   string `json:"wager_no" binding:"required"`
	RequestID string `json:"request_id" binding:"required"`
}

// RefundWager 欠额退款（截止后参与人数不足）
// POST /api/v1/wager/refund
func (h *Handler) RefundWager(c *gin.Context) {
	var req RefundWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.refundService.RefundWager(c.Request.Context(), req.WagerNo, req.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 竞答相关接口
// ============================================================

// CreateQuiz 创建竞答
// POST /api/v1/quiz/create
func (h *Handler) CreateQuiz(c *gin.Context) {
	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	quiz, err := h.quizService.CreateQuiz(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"quiz_no":        quiz.QuizNo,
		"status":         quiz.Status,
		"entry_fee":      quiz.TotalEntryFee(),
		"question_count": quiz.QuestionCount,
	})
}

// QuizActionRequest 竞答状态流转请求（发布/开始/结束/确认成绩共用）
type QuizActionRequest struct {
	QuizNo string `json:"quiz_no" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
}

// PublishQuiz 发布竞答
// POST /api/v1/quiz/publish
func (h *Handler) PublishQuiz(c *gin.Context) {
	var req QuizActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.quizService.PublishQuiz(c.Request.Context(), req.QuizNo, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "发布成功"})
}

// StartQuiz 开始答题
// POST /api/v1/quiz/start
func (h *Handler) StartQuiz(c *gin.Context) {
	var req QuizActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.quizService.StartQuiz(c.Request.Context(), req.QuizNo, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "答题开始"})
}

// JoinQuiz 报名竞答
// POST /api/v1/quiz/join
func (h *Handler) JoinQuiz(c *gin.Context) {
	var req service.JoinQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.quizService.Join(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "报名成功"})
}

// SubmitAnswers 交卷
// POST /api/v1/quiz/submit
func (h *Handler) SubmitAnswers(c *gin.Context) {
	var req service.SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	score, err := h.quizService.SubmitAnswers(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"score": score})
}

// CompleteQuiz 结束答题
// POST /api/v1/quiz/complete
func (h *Handler) CompleteQuiz(c *gin.Context) {
	var req QuizActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.quizService.CompleteQuiz(c.Request.Context(), req.QuizNo, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "答题已结束"})
}

// ResolveQuiz 确认成绩
// POST /api/v1/quiz/resolve
func (h *Handler) ResolveQuiz(c *gin.Context) {
	var req QuizActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.quizService.ResolveQuiz(c.Request.Context(), req.QuizNo, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "成绩已确认"})
}

// SettleQuizRequest 竞答结算请求
type SettleQuizRequest struct {
	QuizNo    string `json:"quiz_no" binding:"required"`
	RequestID string `json:"request_id" binding:"required"`
}

// SettleQuiz 结算竞答
// POST /api/v1/quiz/settle
func (h *Handler) SettleQuiz(c *gin.Context) {
	var req SettleQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settleService.SettleQuiz(c.Request.Context(), req.QuizNo, req.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// GetQuiz 查询竞答详情（含报名列表）
// GET /api/v1/quiz/detail?quiz_no=xxx
func (h *Handler) GetQuiz(c *gin.Context) {
	quizNo := c.Query("quiz_no")
	if quizNo == "" {
		response.ParamError(c, "quiz_no 参数不能为空")
		return
	}

	quiz, err := h.quizService.GetQuiz(c.Request.Context(), quizNo)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.quizService.ListEntries(c.Request.Context(), quizNo)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"quiz":    quiz,
		"entries": entries,
	})
}

// ============================================================
// 管理接口
// ============================================================

// Sweep 手动触发一轮截止时间扫描（外部 cron 调用）
// POST /api/v1/admin/sweep
func (h *Handler) Sweep(c *gin.Context) {
	h.sweepJob.RunOnce(c.Request.Context())
	response.Success(c, gin.H{"message": "扫描完成"})
}
