package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// Multiset is a commitment to an unordered set of elements that can be
// updated incrementally.
type Multiset interface {
	Add(data []byte)
	Remove(data []byte)
	Combine(other Multiset)
	Hash() externalapi.DomainHash
	Serialize() []byte
	Clone() Multiset
}
