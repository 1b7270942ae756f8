package quota

import "errors"

var (
	// ErrQuotaExceeded 는 무료 사용 한도에 도달했을 때 반환된다.
	ErrQuotaExceeded = errors.New("free trial has expired")
	// ErrInvalidCaller 는 호출자 식별자가 비어 있을 때 반환된다.
	ErrInvalidCaller = errors.New("caller id is empty")
)
