package decoder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

// ResolverSource supplies the call table of a network's live runtime.
type ResolverSource interface {
	Resolver(ctx context.Context, n types.Network) (substrate.CallResolver, error)
}

// Request is a decode request for either chain family. To, Value and TxHash
// only apply to EVM networks.
type Request struct {
	Network  types.Network
	CallData string
	To       string
	Value    string
	TxHash   string
}

// Service decodes call data for any configured network.
type Service struct {
	resolvers ResolverSource
	lg        *zap.Logger
}

func NewService(resolvers ResolverSource, lg *zap.Logger) *Service {
	return &Service{resolvers: resolvers, lg: lg.Named("decoder")}
}

// Decode never fails: errors are logged and the result degrades to the raw hash.
func (s *Service) Decode(ctx context.Context, req Request) Decoded {
	var (
		d   Decoded
		err error
	)
	if req.Network.Family == types.FamilyEVM {
		d, err = s.decodeEVM(req)
	} else {
		d, err = s.decodeSubstrate(ctx, req)
	}
	if err != nil {
		s.lg.Warn("call data not decoded",
			zap.String("network", req.Network.Name),
			zap.String("call_hash", d.CallHash),
			zap.Error(err))
	}
	return d
}

func (s *Service) decodeSubstrate(ctx context.Context, req Request) (Decoded, error) {
	data, err := substrate.DecodeHex(req.CallData)
	if err != nil {
		return raw(types.FamilySubstrate, strings.TrimSpace(req.CallData)), err
	}

	var resolver substrate.CallResolver
	if s.resolvers != nil {
		if resolver, err = s.resolvers.Resolver(ctx, req.Network); err != nil {
			s.lg.Debug("live runtime unavailable", zap.String("network", req.Network.Name), zap.Error(err))
		}
	}
	if resolver == nil {
		static, ok := substrate.DefaultResolver(req.Network.Name)
		if !ok {
			return raw(types.FamilySubstrate, substrate.HexEncode(substrate.CallHash(data))),
				fmt.Errorf("no call table for %s", req.Network.Name)
		}
		resolver = static
	}
	return NewSubstrate(resolver, req.Network).Decode(data)
}

func (s *Service) decodeEVM(req Request) (Decoded, error) {
	var data []byte
	if strings.TrimSpace(req.CallData) != "" && req.CallData != "0x" {
		b, err := hexutil.Decode(req.CallData)
		if err != nil {
			return raw(types.FamilyEVM, req.TxHash), err
		}
		data = b
	}
	value := new(big.Int)
	if req.Value != "" {
		if _, ok := value.SetString(req.Value, 10); !ok {
			value.SetInt64(0)
		}
	}
	return DecodeEVM(common.HexToAddress(req.To), value, data, req.TxHash)
}
