package chain

import "github.com/stake-plus/multisig-relay/src/types"

// Defaults is the built-in network table seeded on first start.
var Defaults = []types.Network{
	{ID: 1, Name: "polkadot", DisplayName: "Polkadot", Family: types.FamilySubstrate, Symbol: "DOT", Decimals: 10, SS58Prefix: 0,
		ExplorerURL: "https://polkadot.subscan.io", PriceID: "polkadot", Active: true,
		RPCs: []types.NetworkRPC{{URL: "wss://rpc.polkadot.io", Active: true}}},
	{ID: 2, Name: "kusama", DisplayName: "Kusama", Family: types.FamilySubstrate, Symbol: "KSM", Decimals: 12, SS58Prefix: 2,
		ExplorerURL: "https://kusama.subscan.io", PriceID: "kusama", Active: true,
		RPCs: []types.NetworkRPC{{URL: "wss://kusama-rpc.polkadot.io", Active: true}}},
	{ID: 3, Name: "westend", DisplayName: "Westend", Family: types.FamilySubstrate, Symbol: "WND", Decimals: 12, SS58Prefix: 42,
		ExplorerURL: "https://westend.subscan.io", Active: true,
		RPCs: []types.NetworkRPC{{URL: "wss://westend-rpc.polkadot.io", Active: true}}},
	{ID: 4, Name: "rococo", DisplayName: "Rococo", Family: types.FamilySubstrate, Symbol: "ROC", Decimals: 12, SS58Prefix: 42,
		ExplorerURL: "https://rococo.subscan.io", Active: true,
		RPCs: []types.NetworkRPC{{URL: "wss://rococo-rpc.polkadot.io", Active: true}}},
	{ID: 5, Name: "astar", DisplayName: "Astar", Family: types.FamilySubstrate, Symbol: "ASTR", Decimals: 18, SS58Prefix: 5,
		ExplorerURL: "https://astar.subscan.io", PriceID: "astar", Active: true,
		RPCs: []types.NetworkRPC{{URL: "wss://rpc.astar.network", Active: true}}},
	{ID: 20, Name: "ethereum", DisplayName: "Ethereum", Family: types.FamilyEVM, Symbol: "ETH", Decimals: 18, ChainID: 1,
		ExplorerURL: "https://etherscan.io", SafeServiceURL: "https://safe-transaction-mainnet.safe.global", PriceID: "ethereum", Active: true,
		RPCs: []types.NetworkRPC{{URL: "https://eth.llamarpc.com", Active: true}}},
	{ID: 21, Name: "polygon", DisplayName: "Polygon", Family: types.FamilyEVM, Symbol: "POL", Decimals: 18, ChainID: 137,
		ExplorerURL: "https://polygonscan.com", SafeServiceURL: "https://safe-transaction-polygon.safe.global", PriceID: "matic-network", Active: true,
		RPCs: []types.NetworkRPC{{URL: "https://polygon-rpc.com", Active: true}}},
	{ID: 22, Name: "arbitrum", DisplayName: "Arbitrum One", Family: types.FamilyEVM, Symbol: "ETH", Decimals: 18, ChainID: 42161,
		ExplorerURL: "https://arbiscan.io", SafeServiceURL: "https://safe-transaction-arbitrum.safe.global", PriceID: "ethereum", Active: true,
		RPCs: []types.NetworkRPC{{URL: "https://arb1.arbitrum.io/rpc", Active: true}}},
	{ID: 23, Name: "optimism", DisplayName: "Optimism", Family: types.FamilyEVM, Symbol: "ETH", Decimals: 18, ChainID: 10,
		ExplorerURL: "https://optimistic.etherscan.io", SafeServiceURL: "https://safe-transaction-optimism.safe.global", PriceID: "ethereum", Active: true,
		RPCs: []types.NetworkRPC{{URL: "https://mainnet.optimism.io", Active: true}}},
	{ID: 24, Name: "base", DisplayName: "Base", Family: types.FamilyEVM, Symbol: "ETH", Decimals: 18, ChainID: 8453,
		ExplorerURL: "https://basescan.org", SafeServiceURL: "https://safe-transaction-base.safe.global", PriceID: "ethereum", Active: true,
		RPCs: []types.NetworkRPC{{URL: "https://mainnet.base.org", Active: true}}},
	{ID: 25, Name: "sepolia", DisplayName: "Sepolia", Family: types.FamilyEVM, Symbol: "ETH", Decimals: 18, ChainID: 11155111,
		ExplorerURL: "https://sepolia.etherscan.io", SafeServiceURL: "https://safe-transaction-sepolia.safe.global", Active: true,
		RPCs: []types.NetworkRPC{{URL: "https://rpc.sepolia.org", Active: true}}},
}
