// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

// Определение ошибок
var (
	ErrAccountNotFound = errors.New("account not found")
)

// IsAccountNotFoundError проверяет, что аккаунт отсутствует. Текст ошибки
// не анализируется: "Method not found" от узла - это ошибка конфигурации.
func IsAccountNotFoundError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, rpc.ErrNotFound)
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("solbc-client"),
	}
}

// GetAccountInfo получает информацию об аккаунте в кодировке base64.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetRecentPrioritizationFees возвращает наблюдаемые за последние слоты
// приоритетные комиссии (micro-lamports за compute unit). Если accounts
// не пуст, выборка ограничена транзакциями, которые пишут в эти аккаунты.
func (c *Client) GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error) {
	result, err := c.rpc.GetRecentPrioritizationFees(ctx, solana.PublicKeySlice(accounts))
	if err != nil {
		c.logger.Debug("GetRecentPrioritizationFees error",
			zap.Int("accounts", len(accounts)),
			zap.Error(err))
		return nil, err
	}

	fees := make([]uint64, 0, len(result))
	for _, r := range result {
		fees = append(fees, r.PrioritizationFee)
	}
	return fees, nil
}
