// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/compose-network/ronin-deployer/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var _ chain.Client = (*Fake)(nil)

type (
	// Submission is one recorded call to SubmitContractCreation.
	Submission struct {
		Bytecode        []byte
		ConstructorArgs []byte
		Nonce           uint64
		Tx              *types.Transaction
	}

	// Fake is a single-account chain. Creation transactions are mined immediately
	// unless HoldMining is set, in which case they stay pending until Mine is called.
	Fake struct {
		mu sync.Mutex

		from     common.Address
		nonce    uint64
		code     map[common.Address][]byte
		receipts map[common.Hash]*types.Receipt
		pending  []*types.Receipt

		submissions []Submission
		nonceCalls  int
		calls       int

		HoldMining bool
		FailStatus bool
		SubmitErr  error
	}
)

func NewFake(from common.Address) *Fake {
	return &Fake{
		from:     from,
		code:     make(map[common.Address][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *Fake) Address() common.Address {
	return f.from
}

// SetNonce moves the account nonce, as if unrelated transactions were sent.
func (f *Fake) SetNonce(nonce uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = nonce
}

// SetCode installs runtime code at address.
func (f *Fake) SetCode(address common.Address, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code[address] = code
}

func (f *Fake) PendingNonce(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	f.calls++
	return f.nonce, nil
}

// ConfirmedNonce is the account nonce minus the transactions still held.
func (f *Fake) ConfirmedNonce(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	held := uint64(len(f.pending))
	if held > f.nonce {
		return 0, nil
	}
	return f.nonce - held, nil
}

func (f *Fake) SubmitContractCreation(_ context.Context, bytecode, constructorArgs []byte, nonce uint64) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	if nonce != f.nonce {
		return nil, fmt.Errorf("nonce %d does not match account nonce %d", nonce, f.nonce)
	}

	data := append(append([]byte{}, bytecode...), constructorArgs...)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		Gas:      1_000_000,
		Value:    big.NewInt(0),
		Data:     data,
	})
	f.submissions = append(f.submissions, Submission{
		Bytecode:        append([]byte{}, bytecode...),
		ConstructorArgs: append([]byte{}, constructorArgs...),
		Nonce:           nonce,
		Tx:              tx,
	})
	f.nonce++

	receipt := &types.Receipt{
		TxHash:          tx.Hash(),
		ContractAddress: chain.CreateAddress(f.from, nonce),
		Status:          types.ReceiptStatusSuccessful,
		BlockNumber:     big.NewInt(int64(len(f.submissions))),
	}
	if f.FailStatus {
		receipt.Status = types.ReceiptStatusFailed
	}

	if f.HoldMining {
		f.pending = append(f.pending, receipt)
	} else {
		f.include(receipt)
	}

	return tx, nil
}

// Mine includes every held transaction.
func (f *Fake) Mine() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, receipt := range f.pending {
		f.include(receipt)
	}
	f.pending = nil
}

// DropPending forgets held transactions while keeping their nonces consumed and
// confirmed, as if another transaction at the same nonce was mined instead.
func (f *Fake) DropPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
}

func (f *Fake) include(receipt *types.Receipt) {
	f.receipts[receipt.TxHash] = receipt
	if receipt.Status == types.ReceiptStatusSuccessful {
		f.code[receipt.ContractAddress] = []byte{0x00}
	}
}

func (f *Fake) Receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", hash.Hex(), chain.ErrReceiptNotFound)
	}
	return receipt, nil
}

// WaitReceipt returns immediately when mined, otherwise blocks until ctx is done.
func (f *Fake) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := f.Receipt(ctx, hash)
	if err == nil {
		return receipt, nil
	}

	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *Fake) CodeAt(_ context.Context, address common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.code[address], nil
}

// Submissions returns every creation transaction sent so far.
func (f *Fake) Submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.submissions...)
}

// NonceCalls counts PendingNonce lookups.
func (f *Fake) NonceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonceCalls
}

// Calls counts every Client method invocation except Address.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
