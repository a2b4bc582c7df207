package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sethvargo/go-retry"
)

const (
	defaultPollInterval = 2 * time.Second
	rpcReadyTimeout     = time.Minute
)

var _ Client = (*EthClient)(nil)

type (
	// Backend is the RPC surface EthClient drives. *ethclient.Client implements it.
	Backend interface {
		BlockNumber(ctx context.Context) (uint64, error)
		ChainID(ctx context.Context) (*big.Int, error)
		EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
		SuggestGasPrice(ctx context.Context) (*big.Int, error)
		SuggestGasTipCap(ctx context.Context) (*big.Int, error)
		SendTransaction(ctx context.Context, tx *types.Transaction) error
		HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
		PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
		NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
		CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	}

	// EthClient implements Client over JSON-RPC with a local signing key.
	EthClient struct {
		client       Backend
		closer       func()
		opts         *bind.TransactOpts
		chainID      *big.Int
		pollInterval time.Duration
		logger       *slog.Logger
	}
)

// Dial connects to rpcURL, waiting for the node to answer, and prepares a signer
// for privateKeyHex on the node's chain ID.
func Dial(ctx context.Context, rpcURL, privateKeyHex string) (*EthClient, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	logger.Named("chain_client").With("url", rpcURL).Info("waiting for RPC")
	if err := waitForRPC(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("RPC at %s is not ready: %w", rpcURL, err)
	}

	c, err := NewEthClient(ctx, client, privateKey)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.closer = client.Close

	return c, nil
}

// NewEthClient wraps an already connected backend.
func NewEthClient(ctx context.Context, backend Backend, privateKey *ecdsa.PrivateKey) (*EthClient, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	log := logger.Named("chain_client").With("chain_id", chainID).With("from", opts.From)
	log.Info("chain client ready")

	return &EthClient{
		client:       backend,
		closer:       func() {},
		opts:         opts,
		chainID:      chainID,
		pollInterval: defaultPollInterval,
		logger:       log,
	}, nil
}

// WithPollInterval sets how often WaitReceipt polls for inclusion.
func (c *EthClient) WithPollInterval(interval time.Duration) *EthClient {
	c.pollInterval = interval
	return c
}

func waitForRPC(ctx context.Context, client Backend) error {
	backoff := retry.WithMaxDuration(rpcReadyTimeout, retry.WithCappedDuration(5*time.Second, retry.NewFibonacci(250*time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := client.BlockNumber(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (c *EthClient) Close() {
	c.closer()
}

func (c *EthClient) Address() common.Address {
	return c.opts.From
}

func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *EthClient) PendingNonce(ctx context.Context) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.opts.From)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	return nonce, nil
}

func (c *EthClient) ConfirmedNonce(ctx context.Context) (uint64, error) {
	nonce, err := c.client.NonceAt(ctx, c.opts.From, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get confirmed nonce: %w", err)
	}
	return nonce, nil
}

func (c *EthClient) SubmitContractCreation(ctx context.Context, bytecode, constructorArgs []byte, nonce uint64) (*types.Transaction, error) {
	data := make([]byte, 0, len(bytecode)+len(constructorArgs))
	data = append(data, bytecode...)
	data = append(data, constructorArgs...)

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: c.opts.From, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	var txData types.TxData
	if head.BaseFee != nil {
		tip, err := c.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
		}

		txData = &types.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2))),
			Gas:       gas,
			Value:     big.NewInt(0),
			Data:      data,
		}
	} else {
		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}

		txData = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			Value:    big.NewInt(0),
			Data:     data,
		}
	}

	signed, err := c.opts.Signer(c.opts.From, types.NewTx(txData))
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.
		With("tx_hash", signed.Hash().Hex()).
		With("nonce", nonce).
		With("gas", gas).
		Debug("contract creation transaction sent")

	return signed, nil
}

func (c *EthClient) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%s: %w", hash.Hex(), ErrReceiptNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

func (c *EthClient) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	err := retry.Do(ctx, retry.NewConstant(c.pollInterval), func(ctx context.Context) error {
		r, err := c.Receipt(ctx, hash)
		if errors.Is(err, ErrReceiptNotFound) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (c *EthClient) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := c.client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get code at %s: %w", address.Hex(), err)
	}
	return code, nil
}
