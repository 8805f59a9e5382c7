package service

import (
	"errors"
)

// 服务层错误
// 校验类错误一律在任何资金变动之前返回，调用方可安全重试
var (
	ErrInstanceNotOpen    = errors.New("当前状态不可操作")
	ErrDeadlineNotElapsed = errors.New("截止时间未到")
	ErrDeadlineElapsed    = errors.New("已过截止时间")
	ErrAlreadySettled     = errors.New("已结算，请勿重复操作")
	ErrNotResolved        = errors.New("尚未裁定，不能结算")
	ErrNotCreator         = errors.New("只有创建者可以执行该操作")
	ErrInstanceLocked     = errors.New("已有其他用户参与，不可修改或删除")
	ErrNotRefundable      = errors.New("参与人数超过一人，不满足退款条件")
	ErrInvalidAmount      = errors.New("金额必须大于0")
)
