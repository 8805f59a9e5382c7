package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 结算引擎对外承诺的稳定错误码
// 调用方据此区分提示文案，新增错误必须追加编号，不得复用
const (
	CodeInsufficientFunds      = 1001 // 余额不足
	CodeInstanceNotOpen        = 1002 // 赌局/竞答不在开放状态
	CodeDeadlineNotElapsed     = 1003 // 截止时间未到
	CodeDuplicateStake         = 1004 // 重复参与
	CodeOutcomeAlreadySet      = 1005 // 胜方/成绩已裁定
	CodeAlreadySettled         = 1006 // 已结算（幂等空操作）
	CodeNoWinningStakes        = 1007 // 胜方无人押注
	CodeConcurrentModification = 1008 // 并发冲突，可重试
	CodeInstanceNotFound       = 1009 // 赌局/竞答不存在
	CodeAccountNotFound        = 1010 // 账户不存在
	CodeInstanceLocked         = 1011 // 已有他人参与，不可修改/删除
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
