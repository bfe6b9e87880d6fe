package exception

import "github.com/yanun0323/errors"

var (
	ErrNetwork         = errors.New("network error")
	ErrTimeout         = errors.New("request timed out")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrAuthentication  = errors.New("authentication failed")
	ErrConnectionClose = errors.New("connection closed")
)
