package verify

import (
	"log/slog"

	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/compose-network/ronin-deployer/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// Outcome is the result of comparing a deployed address with the configured one.
type Outcome string

const (
	OutcomeUnspecified Outcome = "unspecified"
	OutcomeMatch       Outcome = "match"
	OutcomeMismatch    Outcome = "mismatch"
)

// Verify compares actual with expected. A nil expected address means none is configured.
func Verify(actual common.Address, expected *common.Address) Outcome {
	switch {
	case expected == nil:
		return OutcomeUnspecified
	case *expected == actual:
		return OutcomeMatch
	default:
		return OutcomeMismatch
	}
}

// Verifier reports address checks. A mismatch is surfaced, never returned as an error.
type Verifier struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewVerifier(m *metrics.Metrics) *Verifier {
	return &Verifier{
		metrics: m,
		logger:  logger.Named("address_verifier"),
	}
}

// Check verifies and logs one line: a warning on mismatch, info otherwise.
func (v *Verifier) Check(step, contractName string, actual common.Address, expected *common.Address) Outcome {
	outcome := Verify(actual, expected)
	v.metrics.Verification(string(outcome))

	log := v.logger.
		With("step", step).
		With("contract_name", contractName).
		With("address", actual.Hex()).
		With("outcome", string(outcome))

	switch outcome {
	case OutcomeMismatch:
		log.With("expected", expected.Hex()).Warn("deployed address differs from configured address")
	case OutcomeMatch:
		log.Info("deployed address matches configuration")
	default:
		log.Info("no expected address configured")
	}

	return outcome
}
