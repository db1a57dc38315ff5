package blockvalidator

import (
	"time"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/math"
	"github.com/pkg/errors"
)

func (v *blockValidator) checkVersion(block *externalapi.DomainBlock, previousBlockIndex uint32) error {
	expectedVersion := v.params.BlockVersion(previousBlockIndex + 1)
	if block.Version != expectedVersion {
		return errors.Wrapf(ruleerrors.ErrWrongVersion, "block version %d, expected %d at index %d",
			block.Version, expectedVersion, previousBlockIndex+1)
	}
	if block.UpgradeVote != block.Version && block.UpgradeVote != block.Version+1 {
		return errors.Wrapf(ruleerrors.ErrWrongUpgradeVote, "block of version %d votes for %d",
			block.Version, block.UpgradeVote)
	}
	return nil
}

// checkTimestamp bounds the timestamp from above by the local clock and
// from below by the median timestamp of the last blocks, once enough of
// them exist. Both bounds depend on the block version.
func (v *blockValidator) checkTimestamp(block *externalapi.DomainBlock, previousBlockIndex uint32,
	view model.ChainView) error {

	maxTimestamp := uint64(v.clock.Now().Add(v.params.BlockFutureTimeLimit(block.Version)).Unix())
	if block.Timestamp > maxTimestamp {
		return errors.Wrapf(ruleerrors.ErrTimestampTooFarInFuture, "block timestamp %s is after %s",
			time.Unix(int64(block.Timestamp), 0).UTC(), time.Unix(int64(maxTimestamp), 0).UTC())
	}

	checkWindow := v.params.TimestampCheckWindow(block.Version)
	timestamps, err := view.LastTimestamps(checkWindow, previousBlockIndex, true)
	if err != nil {
		return err
	}
	if uint32(len(timestamps)) < checkWindow {
		return nil
	}
	medianTimestamp := math.Median(timestamps)
	if block.Timestamp < medianTimestamp {
		return errors.Wrapf(ruleerrors.ErrTimestampTooFarInPast, "block timestamp %d is before the median %d",
			block.Timestamp, medianTimestamp)
	}
	return nil
}
