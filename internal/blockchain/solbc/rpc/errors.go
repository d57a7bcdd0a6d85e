// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrRateLimit сигнализирует, что узел отклонил запрос из-за превышения квоты
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrRateLimitExceeded возвращается, когда все повторные попытки исчерпаны
	ErrRateLimitExceeded = errors.New("rate limit retries exhausted")
)

// Error представляет ошибку RPC с дополнительным контекстом
type Error struct {
	Err      error
	Label    string
	Attempts int
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] after %d attempt(s): %v", e.Label, e.Attempts, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// rateLimitPatterns are lowercase fragments that RPC providers put into
// throttling responses. A bare "429" is not enough: slots and amounts contain it.
var rateLimitPatterns = []string{
	"too many requests",
	"rate limit",
	"rate-limit",
	"ratelimit",
	"status code: " + strconv.Itoa(http.StatusTooManyRequests),
}

// IsRateLimitError reports whether err is a transient throttling signal.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimit) {
		return true
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code == http.StatusTooManyRequests
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == http.StatusTooManyRequests || matchesRateLimit(rpcErr.Message)
	}

	return matchesRateLimit(err.Error())
}

func matchesRateLimit(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
