package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
)

// The offline tools only need the built-in network table.
var builtinNetworks = chain.NewStaticRegistry(chain.Defaults)

func networkFromFlag(cmd *cobra.Command) (types.Network, error) {
	name, _ := cmd.Flags().GetString(networkFlag)
	return builtinNetworks.ByName(name)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decodeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <call-data>",
		Short: "Decode call data with the built-in call tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := networkFromFlag(cmd)
			if err != nil {
				return err
			}
			to, _ := cmd.Flags().GetString("to")
			value, _ := cmd.Flags().GetString("value")

			d := decoder.NewService(nil, rt.lg).Decode(cmd.Context(), decoder.Request{
				Network:  n,
				CallData: args[0],
				To:       to,
				Value:    value,
			})
			return printJSON(cmd, d)
		},
	}
	cmd.Flags().String(networkFlag, "polkadot", "network name")
	cmd.Flags().String("to", "", "EVM only: target contract or recipient")
	cmd.Flags().String("value", "", "EVM only: native value in wei")
	return cmd
}

type addressInfo struct {
	Network   string `json:"network"`
	Encoded   string `json:"encoded"`
	Canonical string `json:"canonical"`
	Short     string `json:"short"`
	Explorer  string `json:"explorer,omitempty"`
}

func addressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <address>",
		Short: "Re-encode an address for a network and print its short form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := networkFromFlag(cmd)
			if err != nil {
				return err
			}
			prefix, _ := cmd.Flags().GetInt("prefix")
			suffix, _ := cmd.Flags().GetInt("suffix")

			enc := address.Encode(args[0], n)
			if enc == "" {
				return fmt.Errorf("%w for %s: %q", address.ErrInvalidAddress, n.Name, args[0])
			}
			return printJSON(cmd, addressInfo{
				Network:   n.Name,
				Encoded:   enc,
				Canonical: address.Canonical(enc),
				Short:     address.Shorten(enc, prefix, suffix),
				Explorer:  chain.ExplorerAddressURL(n, enc),
			})
		},
	}
	cmd.Flags().String(networkFlag, "polkadot", "network name")
	cmd.Flags().Int("prefix", 6, "characters kept before the ellipsis")
	cmd.Flags().Int("suffix", 6, "characters kept after the ellipsis")
	return cmd
}

type amountInfo struct {
	Network  string `json:"network"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Smallest string `json:"smallest"`
	Exact    string `json:"exact"`
	Display  string `json:"display"`
}

func amountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amount <value>",
		Short: "Convert a token amount to smallest units, or back with --from-smallest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := networkFromFlag(cmd)
			if err != nil {
				return err
			}
			decimals := n.Decimals
			if cmd.Flags().Changed("decimals") {
				decimals, _ = cmd.Flags().GetInt32("decimals")
			}
			fromSmallest, _ := cmd.Flags().GetBool("from-smallest")
			digits, _ := cmd.Flags().GetInt("digits")

			var v *big.Int
			if fromSmallest {
				var ok bool
				if v, ok = new(big.Int).SetString(strings.TrimSpace(args[0]), 10); !ok || v.Sign() <= 0 {
					return fmt.Errorf("%w: %q", amount.ErrInvalidAmount, args[0])
				}
			} else if v, err = amount.ToSmallestUnit(args[0], decimals); err != nil {
				return err
			}

			return printJSON(cmd, amountInfo{
				Network:  n.Name,
				Symbol:   n.Symbol,
				Decimals: decimals,
				Smallest: v.String(),
				Exact:    amount.FromSmallestUnit(v, decimals),
				Display:  amount.Format(v, decimals, digits),
			})
		},
	}
	cmd.Flags().String(networkFlag, "polkadot", "network name")
	cmd.Flags().Int32("decimals", 0, "override the network's token decimals")
	cmd.Flags().Bool("from-smallest", false, "treat the value as an integer in smallest units")
	cmd.Flags().Int("digits", 4, "fractional digits in the display form")
	return cmd
}

func multisigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multisig <signatory>...",
		Short: "Derive the Substrate multisig account for signatories and threshold",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := networkFromFlag(cmd)
			if err != nil {
				return err
			}
			if n.Family != types.FamilySubstrate {
				return fmt.Errorf("%s is not a substrate network", n.Name)
			}
			threshold, _ := cmd.Flags().GetUint16("threshold")

			keys := make([][]byte, 0, len(args))
			for _, a := range args {
				pub, err := address.Decode(a)
				if err != nil {
					return fmt.Errorf("signatory %q: %w", a, err)
				}
				keys = append(keys, pub)
			}
			account, err := substrate.DeriveMultisigAccount(keys, threshold)
			if err != nil {
				return err
			}
			enc, err := address.EncodeSS58(account, n.SS58Prefix)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), enc)
			return nil
		},
	}
	cmd.Flags().String(networkFlag, "polkadot", "network name")
	cmd.Flags().Uint16("threshold", 2, "approvals required")
	return cmd
}

func signCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign <call-hash>",
		Short: "Sign a call hash or safeTxHash with proposer_seed for submitTransaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := networkFromFlag(cmd)
			if err != nil {
				return err
			}
			seed, _ := cmd.Flags().GetString("seed")
			if seed == "" {
				seed = rt.loader.GetSetting("proposer_seed", "")
			}
			if seed == "" {
				return errors.New("no seed: pass --seed or set proposer_seed")
			}
			hash, err := hexutil.Decode(args[0])
			if err != nil || len(hash) != 32 {
				return fmt.Errorf("call hash must be 32 bytes of 0x hex: %q", args[0])
			}

			var signer proposal.Signer
			if n.Family == types.FamilyEVM {
				signer, err = proposal.NewEcdsaSigner(seed)
			} else {
				signer, err = proposal.NewSr25519Signer(seed, "")
			}
			if err != nil {
				return err
			}
			sig, err := signer.Sign(cmd.Context(), &proposal.Draft{CallHash: hexutil.Encode(hash)})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"signer":    sig.Signer,
				"signature": hexutil.Encode(sig.Bytes),
			})
		},
	}
	cmd.Flags().String(networkFlag, "polkadot", "network name")
	cmd.Flags().String("seed", "", "mnemonic or 0x secret; defaults to proposer_seed")
	return cmd
}
