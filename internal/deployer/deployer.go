package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/ronin-deployer/internal/chain"
	"github.com/compose-network/ronin-deployer/internal/contracts"
	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/compose-network/ronin-deployer/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrDeployment covers submission failures, reverted creations and timeouts.
	// Re-running the step is safe once the cause clears.
	ErrDeployment = errors.New("deployment error")
	// ErrNonceMismatch is returned when the account nonce differs from the pinned one.
	ErrNonceMismatch = fmt.Errorf("%w: nonce mismatch", ErrDeployment)
	// ErrTimeout is returned when the creation transaction is not confirmed in time.
	ErrTimeout = fmt.Errorf("%w: confirmation timed out", ErrDeployment)
	// ErrNoBytecode is returned for contracts loaded without creation bytecode.
	ErrNoBytecode = errors.New("contract has no creation bytecode")
)

const (
	OutcomeDeployed   = "deployed"
	OutcomeExisting   = "existing"
	OutcomeReconciled = "reconciled"
	OutcomeAdopted    = "adopted"
	OutcomeFailed     = "failed"

	DefaultConfirmTimeout = 2 * time.Minute
)

type (
	// Request describes one contract creation. Args are the constructor arguments.
	Request struct {
		Step        string
		Contract    contracts.Compiled
		Args        []any
		PinnedNonce *uint64
	}

	Options struct {
		ConfirmTimeout time.Duration
		Metrics        *metrics.Metrics
	}

	// Deployer performs idempotent deploy-or-fetch against a deployment store.
	Deployer struct {
		client         chain.Client
		store          deployment.Store
		confirmTimeout time.Duration
		metrics        *metrics.Metrics
		group          singleflight.Group
		logger         *slog.Logger
	}
)

func New(client chain.Client, store deployment.Store, opts Options) *Deployer {
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}

	return &Deployer{
		client:         client,
		store:          store,
		confirmTimeout: timeout,
		metrics:        opts.Metrics,
		logger:         logger.Named("deployer"),
	}
}

// PredictAddress returns the address a creation transaction from sender at nonce deploys to.
func PredictAddress(sender common.Address, nonce uint64) common.Address {
	return chain.CreateAddress(sender, nonce)
}

// Predict returns the address the next deployment would get, using pinned when set
// and the account's pending nonce otherwise.
func (d *Deployer) Predict(ctx context.Context, pinned *uint64) (common.Address, uint64, error) {
	if pinned != nil {
		return PredictAddress(d.client.Address(), *pinned), *pinned, nil
	}

	nonce, err := d.client.PendingNonce(ctx)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("failed to read account nonce: %w", err)
	}
	return PredictAddress(d.client.Address(), nonce), nonce, nil
}

// DeployOrFetch returns the recorded artifact for name, deploying it first when the
// store has none. Concurrent calls for the same name share one execution.
func (d *Deployer) DeployOrFetch(ctx context.Context, name string, req Request) (deployment.Artifact, error) {
	result, err, _ := d.group.Do(name, func() (any, error) {
		return d.deployOrFetch(ctx, name, req)
	})
	if err != nil {
		d.metrics.Deployment(OutcomeFailed)
		return deployment.Artifact{}, err
	}
	return result.(deployment.Artifact), nil
}

func (d *Deployer) deployOrFetch(ctx context.Context, name string, req Request) (deployment.Artifact, error) {
	log := d.logger.With("step", req.Step, "contract_name", name)

	existing, found, err := d.store.Get(ctx, name)
	if err != nil {
		return deployment.Artifact{}, fmt.Errorf("failed to read deployment record %s: %w", name, err)
	}
	if found {
		d.logOutcome(log, existing, OutcomeExisting)
		return existing, nil
	}

	if !req.Contract.Deployable() {
		return deployment.Artifact{}, fmt.Errorf("%s: %w", req.Contract.Name, ErrNoBytecode)
	}

	constructorArgs, err := contracts.NewEncoder(req.Contract).EncodeConstructor(req.Args...)
	if err != nil {
		return deployment.Artifact{}, err
	}

	pending, found, err := d.store.GetPending(ctx, name)
	if err != nil {
		return deployment.Artifact{}, fmt.Errorf("failed to read pending deployment %s: %w", name, err)
	}
	if found {
		artifact, done, err := d.reconcile(ctx, log, req, pending)
		if err != nil || done {
			return artifact, err
		}
	}

	nonce, err := d.client.PendingNonce(ctx)
	if err != nil {
		return deployment.Artifact{}, fmt.Errorf("%w: failed to read account nonce: %w", ErrDeployment, err)
	}
	if req.PinnedNonce != nil && *req.PinnedNonce != nonce {
		return deployment.Artifact{}, fmt.Errorf("%w: %s pinned to nonce %d but account %s is at %d",
			ErrNonceMismatch, name, *req.PinnedNonce, d.client.Address().Hex(), nonce)
	}

	predicted := PredictAddress(d.client.Address(), nonce)
	log.With("nonce", nonce).With("address", predicted.Hex()).Debug("submitting contract creation")

	// The intent is journaled before sending so a crash after submission is still reconcilable.
	intent := deployment.Pending{
		Name:     name,
		Contract: string(req.Contract.Name),
		Address:  predicted,
		Deployer: d.client.Address(),
		Nonce:    nonce,
	}
	if err := d.store.PutPending(ctx, intent); err != nil {
		return deployment.Artifact{}, fmt.Errorf("failed to journal deployment of %s: %w", name, err)
	}

	tx, err := d.client.SubmitContractCreation(ctx, req.Contract.Bytecode, constructorArgs, nonce)
	if err != nil {
		if clearErr := d.store.DeletePending(ctx, name); clearErr != nil {
			log.With("err", clearErr.Error()).Warn("failed to clear deployment journal")
		}
		return deployment.Artifact{}, fmt.Errorf("%w: failed to submit %s: %w", ErrDeployment, name, err)
	}

	intent.TxHash = tx.Hash()
	if err := d.store.PutPending(ctx, intent); err != nil {
		return deployment.Artifact{}, fmt.Errorf("failed to journal transaction of %s: %w", name, err)
	}

	receipt, err := d.waitReceipt(ctx, intent.TxHash)
	if err != nil {
		return deployment.Artifact{}, fmt.Errorf("%s: %w", name, err)
	}

	return d.recordReceipt(ctx, log, req, intent, receipt, OutcomeDeployed)
}

// reconcile resolves a journaled deployment left behind by an interrupted run.
// When done is false the journal was cleared and a fresh submission may proceed.
func (d *Deployer) reconcile(ctx context.Context, log *slog.Logger, req Request, pending deployment.Pending) (deployment.Artifact, bool, error) {
	log.With("pending_tx", pending.TxHash.Hex()).With("nonce", pending.Nonce).Debug("reconciling journaled deployment")

	if pending.TxHash != (common.Hash{}) {
		receipt, err := d.client.Receipt(ctx, pending.TxHash)
		switch {
		case err == nil:
			artifact, err := d.recordReceipt(ctx, log, req, pending, receipt, OutcomeReconciled)
			return artifact, true, err
		case !errors.Is(err, chain.ErrReceiptNotFound):
			return deployment.Artifact{}, true, fmt.Errorf("%w: failed to look up %s: %w", ErrDeployment, pending.TxHash.Hex(), err)
		}
	}

	nonce, err := d.client.PendingNonce(ctx)
	if err != nil {
		return deployment.Artifact{}, true, fmt.Errorf("%w: failed to read account nonce: %w", ErrDeployment, err)
	}

	if nonce <= pending.Nonce {
		log.With("account_nonce", nonce).Info("journaled transaction never reached the node, resubmitting")
		if err := d.store.DeletePending(ctx, pending.Name); err != nil {
			return deployment.Artifact{}, true, fmt.Errorf("failed to clear deployment journal of %s: %w", pending.Name, err)
		}
		return deployment.Artifact{}, false, nil
	}

	code, err := d.client.CodeAt(ctx, pending.Address)
	if err != nil {
		return deployment.Artifact{}, true, fmt.Errorf("%w: failed to read code at %s: %w", ErrDeployment, pending.Address.Hex(), err)
	}
	if len(code) > 0 {
		adopted := deployment.Artifact{
			Name:       pending.Name,
			Contract:   string(req.Contract.Name),
			Address:    pending.Address,
			TxHash:     pending.TxHash,
			Deployer:   pending.Deployer,
			Nonce:      pending.Nonce,
			ABI:        req.Contract.RawABI,
			Reconciled: true,
		}
		artifact, err := d.record(ctx, log, adopted, OutcomeAdopted)
		return artifact, true, err
	}

	if pending.TxHash == (common.Hash{}) {
		if err := d.store.DeletePending(ctx, pending.Name); err != nil {
			return deployment.Artifact{}, true, fmt.Errorf("failed to clear deployment journal of %s: %w", pending.Name, err)
		}
		return deployment.Artifact{}, true, fmt.Errorf("%w: nonce %d of %s was consumed without creating %s",
			ErrDeployment, pending.Nonce, pending.Deployer.Hex(), pending.Name)
	}

	confirmed, err := d.client.ConfirmedNonce(ctx)
	if err != nil {
		return deployment.Artifact{}, true, fmt.Errorf("%w: failed to read confirmed nonce: %w", ErrDeployment, err)
	}
	if confirmed > pending.Nonce {
		// Included between the first lookup and the nonce read.
		if receipt, err := d.client.Receipt(ctx, pending.TxHash); err == nil {
			artifact, err := d.recordReceipt(ctx, log, req, pending, receipt, OutcomeReconciled)
			return artifact, true, err
		}

		// Nonce mined without our receipt or code: the transaction was replaced.
		if err := d.store.DeletePending(ctx, pending.Name); err != nil {
			return deployment.Artifact{}, true, fmt.Errorf("failed to clear deployment journal of %s: %w", pending.Name, err)
		}
		return deployment.Artifact{}, true, fmt.Errorf("%w: nonce %d of %s was mined without %s, transaction %s was replaced",
			ErrDeployment, pending.Nonce, pending.Deployer.Hex(), pending.Name, pending.TxHash.Hex())
	}

	// Nonce not yet mined: the transaction is still in the pool.
	receipt, err := d.waitReceipt(ctx, pending.TxHash)
	if err != nil {
		return deployment.Artifact{}, true, fmt.Errorf("%s: %w", pending.Name, err)
	}
	artifact, err := d.recordReceipt(ctx, log, req, pending, receipt, OutcomeReconciled)
	return artifact, true, err
}

func (d *Deployer) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, d.confirmTimeout)
	defer cancel()

	receipt, err := d.client.WaitReceipt(waitCtx, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s not confirmed within %s", ErrTimeout, hash.Hex(), d.confirmTimeout)
		}
		return nil, fmt.Errorf("%w: waiting for %s: %w", ErrDeployment, hash.Hex(), err)
	}

	return receipt, nil
}

func (d *Deployer) recordReceipt(ctx context.Context, log *slog.Logger, req Request, pending deployment.Pending, receipt *types.Receipt, outcome string) (deployment.Artifact, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		if err := d.store.DeletePending(ctx, pending.Name); err != nil {
			log.With("err", err.Error()).Warn("failed to clear deployment journal")
		}
		return deployment.Artifact{}, fmt.Errorf("%w: creation of %s reverted in %s", ErrDeployment, pending.Name, receipt.TxHash.Hex())
	}

	artifact := deployment.Artifact{
		Name:     pending.Name,
		Contract: string(req.Contract.Name),
		Address:  receipt.ContractAddress,
		TxHash:   receipt.TxHash,
		Deployer: pending.Deployer,
		Nonce:    pending.Nonce,
		ABI:      req.Contract.RawABI,
	}
	if receipt.BlockNumber != nil {
		artifact.BlockNumber = receipt.BlockNumber.Uint64()
	}

	return d.record(ctx, log, artifact, outcome)
}

func (d *Deployer) record(ctx context.Context, log *slog.Logger, artifact deployment.Artifact, outcome string) (deployment.Artifact, error) {
	if err := d.store.Put(ctx, artifact); err != nil {
		if !errors.Is(err, deployment.ErrAlreadyRecorded) {
			return deployment.Artifact{}, fmt.Errorf("failed to record %s at %s: %w", artifact.Name, artifact.Address.Hex(), err)
		}
		// Another writer got there first; its record wins.
		existing, found, getErr := d.store.Get(ctx, artifact.Name)
		if getErr != nil || !found {
			return deployment.Artifact{}, fmt.Errorf("failed to record %s: %w", artifact.Name, err)
		}
		artifact, outcome = existing, OutcomeExisting
	}

	if err := d.store.DeletePending(ctx, artifact.Name); err != nil {
		log.With("err", err.Error()).Warn("failed to clear deployment journal")
	}

	d.logOutcome(log, artifact, outcome)
	return artifact, nil
}

func (d *Deployer) logOutcome(log *slog.Logger, artifact deployment.Artifact, outcome string) {
	d.metrics.Deployment(outcome)
	log.
		With("address", artifact.Address.Hex()).
		With("tx_hash", artifact.TxHash.Hex()).
		With("outcome", outcome).
		Info("contract deployment resolved")
}
