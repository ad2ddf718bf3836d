package service

import (
	"errors"

	"guessescrow/internal/ledger"
	"guessescrow/internal/repository"
)

var (
	ErrAuthorizationMismatch = errors.New("调用方无权操作该记录")
	ErrAlreadySettled        = errors.New("游戏已结算")
	ErrAlreadyInitialized    = errors.New("庄家资金池已初始化")
	ErrAlreadyExists         = errors.New("游戏记录已存在")
	ErrNotInitialized        = errors.New("记录未初始化")
	ErrOverflow              = errors.New("金额超出上限")
	ErrInvalidAmount         = errors.New("金额必须大于0且不超过上限")
	ErrInsufficientFunds     = errors.New("余额不足")
	ErrDuplicateRequest      = errors.New("请求号已被使用")
	ErrCustodialAddress      = errors.New("不能对托管金库执行该操作")
	ErrSystemBusy            = errors.New("系统繁忙，请稍后重试")
)

// translateErr 把底层错误映射到业务错误，未识别的错误原样返回
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, ledger.ErrOverflow):
		return ErrOverflow
	case errors.Is(err, ledger.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, ledger.ErrUnauthorizedTransfer), errors.Is(err, ledger.ErrNotCustodial):
		return ErrAuthorizationMismatch
	case errors.Is(err, repository.ErrOptimisticLock):
		return ErrSystemBusy
	}
	return err
}

// Reason 错误的简短标识，用作监控标签
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAuthorizationMismatch):
		return "authorization_mismatch"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrCustodialAddress):
		return "custodial_address"
	case errors.Is(err, ErrSystemBusy):
		return "busy"
	default:
		return "internal"
	}
}
