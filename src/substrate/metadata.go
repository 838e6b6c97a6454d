package substrate

import (
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// MetadataResolver resolves calls from the live runtime metadata (V14+).
type MetadataResolver struct {
	*StaticResolver
}

// NewMetadataResolver indexes every call variant of every pallet.
func NewMetadataResolver(meta *types.Metadata) (*MetadataResolver, error) {
	if meta == nil || meta.Version < 14 {
		return nil, fmt.Errorf("metadata: unsupported version")
	}
	v14 := meta.AsMetadataV14

	lookup := make(map[int64]types.Si1Type, len(v14.Lookup.Types))
	for _, t := range v14.Lookup.Types {
		lookup[typeID(t.ID)] = t.Type
	}

	entries := make(map[CallName]CallIndex)
	for _, pallet := range v14.Pallets {
		if !pallet.HasCalls {
			continue
		}
		t, ok := lookup[typeID(pallet.Calls.Type)]
		if !ok || !t.Def.IsVariant {
			continue
		}
		for _, v := range t.Def.Variant.Variants {
			entries[CallName{Pallet: string(pallet.Name), Call: string(v.Name)}] = CallIndex{
				Pallet: uint8(pallet.Index),
				Call:   uint8(v.Index),
			}
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("metadata: no calls found")
	}
	return &MetadataResolver{StaticResolver: NewStaticResolver(entries)}, nil
}

func typeID(id types.Si1LookupTypeID) int64 {
	return (*big.Int)(&id.UCompact).Int64()
}
