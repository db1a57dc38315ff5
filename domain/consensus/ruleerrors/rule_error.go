package ruleerrors

import (
	"fmt"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// Structural errors are found before any state is consulted.
var (
	// ErrDeserializationFailed indicates a block or transaction blob could
	// not be decoded.
	ErrDeserializationFailed = newRuleError("ErrDeserializationFailed")

	// ErrTransactionInconsistency indicates the block template and the raw
	// transactions it came with do not describe the same transactions.
	ErrTransactionInconsistency = newRuleError("ErrTransactionInconsistency")

	// ErrTransactionDuplicates indicates a block lists the same transaction
	// more than once.
	ErrTransactionDuplicates = newRuleError("ErrTransactionDuplicates")
)

// Orphan and duplicate errors are expected under normal gossip churn.
var (
	// ErrRejectedAsOrphaned indicates the parent of the block is unknown,
	// or the block claims to be a genesis block.
	ErrRejectedAsOrphaned = newRuleError("ErrRejectedAsOrphaned")

	// ErrRejectedAsAlternative indicates an alternative block forks off
	// below the last checkpoint.
	ErrRejectedAsAlternative = newRuleError("ErrRejectedAsAlternative")

	// ErrAlreadyExists indicates a block with the same hash already exists.
	ErrAlreadyExists = newRuleError("ErrAlreadyExists")
)

// Block rule violations.
var (
	ErrWrongVersion                = newRuleError("ErrWrongVersion")
	ErrWrongUpgradeVote            = newRuleError("ErrWrongUpgradeVote")
	ErrTimestampTooFarInFuture     = newRuleError("ErrTimestampTooFarInFuture")
	ErrTimestampTooFarInPast       = newRuleError("ErrTimestampTooFarInPast")
	ErrCoinbaseTooLarge            = newRuleError("ErrCoinbaseTooLarge")
	ErrCumulativeBlockSizeTooBig   = newRuleError("ErrCumulativeBlockSizeTooBig")
	ErrCheckpointBlockHashMismatch = newRuleError("ErrCheckpointBlockHashMismatch")
	ErrProofOfWorkTooWeak          = newRuleError("ErrProofOfWorkTooWeak")
	ErrMergeMiningTagDisabled      = newRuleError("ErrMergeMiningTagDisabled")
	ErrMergeMiningTagTooLarge      = newRuleError("ErrMergeMiningTagTooLarge")
	ErrMergeMiningTagEmpty         = newRuleError("ErrMergeMiningTagEmpty")
	ErrMergeMiningTagPruned        = newRuleError("ErrMergeMiningTagPruned")
	ErrMergeMiningTagInvalidType   = newRuleError("ErrMergeMiningTagInvalidType")
	ErrBlockRewardMismatch         = newRuleError("ErrBlockRewardMismatch")
	ErrFeeAmountOverflow           = newRuleError("ErrFeeAmountOverflow")
	ErrDoubleSpending              = newRuleError("ErrDoubleSpending")
	ErrStaticRewardMismatch        = newRuleError("ErrStaticRewardMismatch")

	// ErrDifficultyOverhead indicates the difficulty for the next block
	// computed as zero, which only happens on a misconfigured window.
	ErrDifficultyOverhead = newRuleError("ErrDifficultyOverhead")
)

// Transaction rule violations.
var (
	ErrTransactionTooLarge            = newRuleError("ErrTransactionTooLarge")
	ErrInvalidVersion                 = newRuleError("ErrInvalidVersion")
	ErrInvalidExtra                   = newRuleError("ErrInvalidExtra")
	ErrExtraTooLarge                  = newRuleError("ErrExtraTooLarge")
	ErrEmptyInputs                    = newRuleError("ErrEmptyInputs")
	ErrEmptyOutputs                   = newRuleError("ErrEmptyOutputs")
	ErrBaseInputWrongCount            = newRuleError("ErrBaseInputWrongCount")
	ErrBaseInputUnexpectedType        = newRuleError("ErrBaseInputUnexpectedType")
	ErrBaseInputWrongBlockIndex       = newRuleError("ErrBaseInputWrongBlockIndex")
	ErrBaseTransactionWrongUnlockTime = newRuleError("ErrBaseTransactionWrongUnlockTime")
	ErrBaseInvalidSignaturesCount     = newRuleError("ErrBaseInvalidSignaturesCount")
	ErrOutputUnexpectedType           = newRuleError("ErrOutputUnexpectedType")
	ErrOutputZeroAmount               = newRuleError("ErrOutputZeroAmount")
	ErrOutputInvalidKey               = newRuleError("ErrOutputInvalidKey")
	ErrOutputsNotCanonical            = newRuleError("ErrOutputsNotCanonical")
	ErrInputsAmountOverflow           = newRuleError("ErrInputsAmountOverflow")
	ErrOutputsAmountOverflow          = newRuleError("ErrOutputsAmountOverflow")
	ErrInputIdenticalKeyImages        = newRuleError("ErrInputIdenticalKeyImages")
	ErrInputKeyImageAlreadySpent      = newRuleError("ErrInputKeyImageAlreadySpent")
	ErrInputMixinTooHigh              = newRuleError("ErrInputMixinTooHigh")
	ErrInputMixinTooLow               = newRuleError("ErrInputMixinTooLow")
	ErrInputAmountInsufficient        = newRuleError("ErrInputAmountInsufficient")
	ErrFeeInsufficient                = newRuleError("ErrFeeInsufficient")
	ErrInputEmptyOutputUsage          = newRuleError("ErrInputEmptyOutputUsage")
	ErrInputDuplicateGlobalIndex      = newRuleError("ErrInputDuplicateGlobalIndex")
	ErrInputInvalidGlobalIndex        = newRuleError("ErrInputInvalidGlobalIndex")
	ErrInputSpendLockedOut            = newRuleError("ErrInputSpendLockedOut")
	ErrInputInvalidUnknown            = newRuleError("ErrInputInvalidUnknown")
	ErrInputInvalidSignaturesCount    = newRuleError("ErrInputInvalidSignaturesCount")
	ErrInputInvalidSignatures         = newRuleError("ErrInputInvalidSignatures")
	ErrInputInvalidDomainKeyImages    = newRuleError("ErrInputInvalidDomainKeyImages")

	// ErrTransactionAlreadyInPool and ErrTransactionAlreadyInChain are
	// returned when the pool is offered a transaction it cannot take twice.
	ErrTransactionAlreadyInPool  = newRuleError("ErrTransactionAlreadyInPool")
	ErrTransactionAlreadyInChain = newRuleError("ErrTransactionAlreadyInChain")
)

// Fatal errors are not rule violations. They abort the operation and are
// expected to stop the node.
var (
	// ErrNotInitialized indicates an operation ran before the root segment
	// was loaded.
	ErrNotInitialized = errors.New("consensus is not initialized")

	// ErrCorruptedBlockchain indicates the main chain store and the segment
	// tree disagree on history in a way that cannot be repaired.
	ErrCorruptedBlockchain = errors.New("corrupted blockchain")

	// ErrNewerSchemeVersion indicates the segment database was written by a
	// newer version of the node.
	ErrNewerSchemeVersion = errors.New("database scheme version is newer than supported")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules. The caller can use type assertions to determine if a failure was
// specifically due to a rule violation.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// IsRuleError returns whether err carries a RuleError.
func IsRuleError(err error) bool {
	var ruleError RuleError
	return errors.As(err, &ruleError)
}

// ErrInvalidTransactionInBlock indicates a transaction of a block failed
// validation. Reason is the rule error the transaction failed with.
type ErrInvalidTransactionInBlock struct {
	TransactionIndex int
	TransactionHash  externalapi.DomainHash
	Reason           error
}

func (e ErrInvalidTransactionInBlock) Error() string {
	return fmt.Sprintf("transaction %d (%s): %s", e.TransactionIndex, e.TransactionHash, e.Reason)
}

// Unwrap exposes the rule error of the transaction so errors.Is matches it.
func (e ErrInvalidTransactionInBlock) Unwrap() error {
	return e.Reason
}

// NewErrInvalidTransactionInBlock creates a new ErrInvalidTransactionInBlock
// error wrapped in a RuleError
func NewErrInvalidTransactionInBlock(transactionIndex int, transactionHash externalapi.DomainHash,
	reason error) error {

	return errors.WithStack(RuleError{
		message: "ErrInvalidTransactionInBlock",
		inner:   ErrInvalidTransactionInBlock{transactionIndex, transactionHash, reason},
	})
}
