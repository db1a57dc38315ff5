package ruleerrors

import (
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

func TestNewErrInvalidTransactionInBlock(t *testing.T) {
	hash := externalapi.DomainHash{255, 255, 255}
	outer := NewErrInvalidTransactionInBlock(3, hash, errors.WithStack(ErrInputKeyImageAlreadySpent))
	expectedOuterErr := "ErrInvalidTransactionInBlock: transaction 3 " +
		"(ffffff0000000000000000000000000000000000000000000000000000000000): ErrInputKeyImageAlreadySpent"

	inner := &ErrInvalidTransactionInBlock{}
	if !errors.As(outer, inner) {
		t.Fatal("TestNewErrInvalidTransactionInBlock: Outer should contain ErrInvalidTransactionInBlock in it")
	}
	if inner.TransactionIndex != 3 || inner.TransactionHash != hash {
		t.Fatalf("TestNewErrInvalidTransactionInBlock: unexpected inner error %+v", inner)
	}

	rule := &RuleError{}
	if !errors.As(outer, rule) {
		t.Fatal("TestNewErrInvalidTransactionInBlock: Outer should contain RuleError in it")
	}
	if rule.message != "ErrInvalidTransactionInBlock" {
		t.Fatalf("TestNewErrInvalidTransactionInBlock: Expected message = 'ErrInvalidTransactionInBlock', "+
			"found: '%s'", rule.message)
	}
	if !errors.Is(outer, ErrInputKeyImageAlreadySpent) {
		t.Fatal("TestNewErrInvalidTransactionInBlock: the transaction's rule error should be reachable")
	}
	if outer.Error() != expectedOuterErr {
		t.Fatalf("TestNewErrInvalidTransactionInBlock: Expected %s. found: %s", expectedOuterErr, outer.Error())
	}
}

func TestIsRuleError(t *testing.T) {
	if !IsRuleError(errors.Wrap(ErrAlreadyExists, "block 12")) {
		t.Fatalf("TestIsRuleError: a wrapped rule error was not recognized")
	}
	if IsRuleError(errors.Wrap(ErrCorruptedBlockchain, "load")) {
		t.Fatalf("TestIsRuleError: a fatal error was reported as a rule error")
	}
	if errors.Is(ErrAlreadyExists, ErrRejectedAsOrphaned) {
		t.Fatalf("TestIsRuleError: distinct rule errors compare equal")
	}
}
