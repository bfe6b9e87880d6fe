package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderRejected         = errors.New("order: rejected by exchange")
	ErrOrderInvalid          = errors.New("order: invalid request")
	ErrOrderUnsupportedType  = errors.New("order: unsupported type")
	ErrOrderUnknown          = errors.New("order: not found")
	ErrOrderDuplicate        = errors.New("order: already exists")
	ErrInsufficientBalance   = errors.New("order: insufficient balance")
	ErrOrderRetriesExhausted = errors.New("order: retry budget exhausted")
)
