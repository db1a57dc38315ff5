package memorysegment

import "github.com/cnchain/cnd/domain/consensus/model"

type factory struct{}

// NewFactory returns a SegmentStorageFactory of in-memory segments. Nothing
// survives a restart, so there is never a stored root.
func NewFactory() model.SegmentStorageFactory {
	return factory{}
}

func (factory) NewSegmentStorage(startIndex uint32) (model.SegmentStorage, error) {
	return New(startIndex), nil
}

func (factory) LoadRoot() (model.SegmentStorage, bool, error) {
	return nil, false, nil
}
