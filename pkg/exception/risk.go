package exception

import "github.com/yanun0323/errors"

var (
	ErrRiskPositionLimit = errors.New("risk: net position limit exceeded")
	ErrRiskNotionalLimit = errors.New("risk: notional limit exceeded")
	ErrRiskDailyLoss     = errors.New("risk: daily loss limit breached")
	ErrRiskBreakerActive = errors.New("risk: circuit breaker active")
)
