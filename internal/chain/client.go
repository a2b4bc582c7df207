package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReceiptNotFound is returned while a transaction is not yet included.
var ErrReceiptNotFound = errors.New("receipt not found")

// Client is the slice of chain access the deployment pipeline needs.
// All methods act on behalf of a single sending account.
type Client interface {
	Address() common.Address
	PendingNonce(ctx context.Context) (uint64, error)
	// ConfirmedNonce counts transactions of the account included in the latest block.
	ConfirmedNonce(ctx context.Context) (uint64, error)
	// SubmitContractCreation signs and sends a creation transaction carrying
	// bytecode || constructorArgs at exactly nonce.
	SubmitContractCreation(ctx context.Context, bytecode, constructorArgs []byte, nonce uint64) (*types.Transaction, error)
	// Receipt returns ErrReceiptNotFound for unknown or pending transactions.
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// WaitReceipt polls until the transaction is included or ctx is done.
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}
