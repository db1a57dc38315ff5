package blockvalidator

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/pkg/errors"
)

// CheckMergeMiningTag accepts blocks without a tag. A tag is only allowed
// from MergeMiningStartVersion on, must be raw, and must hold between one
// and MaxMergeMiningTagSize hashes.
func (v *blockValidator) CheckMergeMiningTag(block *externalapi.DomainBlock) error {
	if block.MergeMiningTag == nil {
		return nil
	}
	if v.params.MergeMiningStartVersion == 0 || block.Version < v.params.MergeMiningStartVersion {
		return errors.Wrapf(ruleerrors.ErrMergeMiningTagDisabled, "blocks of version %d cannot be merge mined",
			block.Version)
	}

	switch tag := block.MergeMiningTag.(type) {
	case *externalapi.RawMergeMiningTag:
		if tag.Size() == 0 {
			return errors.Wrap(ruleerrors.ErrMergeMiningTagEmpty, "merge mining tag holds no hashes")
		}
		if tag.Size() > v.params.MaxMergeMiningTagSize {
			return errors.Wrapf(ruleerrors.ErrMergeMiningTagTooLarge, "merge mining tag holds %d hashes, at most %d allowed",
				tag.Size(), v.params.MaxMergeMiningTagSize)
		}
		return nil
	case *externalapi.PrunedMergeMiningTag:
		return errors.Wrap(ruleerrors.ErrMergeMiningTagPruned, "pruned merge mining tags cannot be validated")
	default:
		return errors.Wrapf(ruleerrors.ErrMergeMiningTagInvalidType, "unknown merge mining tag %T", tag)
	}
}

func (v *blockValidator) CheckProofOfWork(block *externalapi.DomainBlock, difficulty uint64) error {
	if v.params.SkipProofOfWork {
		return nil
	}
	proofOfWorkHash := v.signatureOracle.ProofOfWorkHash(consensushashing.ProofOfWorkBlob(block))
	if !v.difficultyManager.CheckProofOfWork(proofOfWorkHash, difficulty) {
		return errors.Wrapf(ruleerrors.ErrProofOfWorkTooWeak, "proof of work %s does not meet difficulty %d",
			proofOfWorkHash, difficulty)
	}
	return nil
}
