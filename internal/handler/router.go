package handler

import (
	"wagr/internal/config"
	"wagr/internal/job"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, sweepJob *job.DeadlineSweepJob) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, sweepJob)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
			account.POST("/transfer", h.Transfer)
			account.GET("/transactions", h.ListTransactions)
		}

		// 赌局相关
		wager := api.Group("/wager")
		{
			wager.POST("/create", h.CreateWager)
			wager.POST("/join", h.JoinWager)
			wager.GET("/detail", h.GetWager)
			wager.GET("/list", h.ListWagers)
			wager.POST("/outcome", h.SetWagerOutcome)
			wager.POST("/settle", h.SettleWager)
			wager.POST("/update", h.UpdateWager)
			wager.POST("/delete", h.DeleteWager)
			wager.POST("/refund", h.RefundWager)
		}

		// 竞答相关
		quiz := api.Group("/quiz")
		{
			quiz.POST("/create", h.CreateQuiz)
			quiz.POST("/publish", h.PublishQuiz)
			quiz.POST("/start", h.StartQuiz)
			quiz.POST("/join", h.JoinQuiz)
			quiz.POST("/submit", h.SubmitAnswers)
			quiz.POST("/complete", h.CompleteQuiz)
			quiz.POST("/resolve", h.ResolveQuiz)
			quiz.POST("/settle", h.SettleQuiz)
			quiz.GET("/detail", h.GetQuiz)
		}

		// 管理相关
		admin := api.Group("/admin")
		{
			admin.POST("/sweep", h.Sweep)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
