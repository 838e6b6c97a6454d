package proposal_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/data/datatest"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/substrate/substratetest"
	"github.com/stake-plus/multisig-relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	aliceSeed    = "0xe5be9a5092b81bca64be81d212e7f2f9eba183bb7a90954f7b76361f6edb5c0a"
	alice        = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bob          = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
	charlie      = "0x90b5ab205c6974c9ea841be688864633dc9ca8a357843eeacf2314649965fe22"
	dave         = "0x306721211d5404bd9da88e0204360a1a9ab8b87c66c1bc2fcdd37f3c2222cc20"
	multisigAddr = "0x49daa32c7287890f38b7e1a8cd2961723d36d20baa0bf3b82e0c4bdda93b1c0a"
	otherAddr    = "0x2222222222222222222222222222222222222222222222222222222222222222"
	carolSeed    = "0x0101010101010101010101010101010101010101010101010101010101010101"

	ownerKeyA = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	ownerKeyB = "8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a"
	safeAddr  = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	recipient = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

var networks = []types.Network{
	{ID: 1, Name: "polkadot", Family: types.FamilySubstrate, Symbol: "DOT", Decimals: 12, SS58Prefix: 0, Active: true},
	{ID: 20, Name: "ethereum", Family: types.FamilyEVM, Symbol: "ETH", Decimals: 18, ChainID: 1, Active: true},
}

type fakeSubstrateRelay struct {
	calls int
	err   error
}

func (f *fakeSubstrateRelay) SubmitExtrinsic(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "0xfeed", nil
}

type fakeSafeRelay struct {
	nonce     uint64
	proposals []safe.ProposeRequest
	confirms  []string
	err       error
}

func (f *fakeSafeRelay) Nonce(context.Context, common.Address) (uint64, error) { return f.nonce, nil }

func (f *fakeSafeRelay) Propose(_ context.Context, req safe.ProposeRequest) error {
	f.proposals = append(f.proposals, req)
	return f.err
}

func (f *fakeSafeRelay) Confirm(_ context.Context, hash string, _ []byte) error {
	f.confirms = append(f.confirms, hash)
	return f.err
}

type fakeSimulator struct{ err error }

func (f fakeSimulator) EstimateGas(context.Context, common.Address, common.Address, *big.Int, []byte) (uint64, error) {
	return 21000, f.err
}

type fakeChains struct {
	sub  *fakeSubstrateRelay
	safe *fakeSafeRelay
	sim  proposal.Simulator
}

func (f *fakeChains) Resolver(context.Context, types.Network) (substrate.CallResolver, error) {
	return nil, errors.New("offline")
}

func (f *fakeChains) SubstrateRelay(context.Context, types.Network) (proposal.SubstrateRelay, error) {
	return f.sub, nil
}

func (f *fakeChains) SafeRelay(types.Network) (proposal.SafeRelay, error) { return f.safe, nil }

func (f *fakeChains) Simulator(context.Context, types.Network) (proposal.Simulator, error) {
	return f.sim, nil
}

type recordHook struct{ events []notify.Event }

func (h *recordHook) Dispatch(_ context.Context, ev notify.Event) { h.events = append(h.events, ev) }

type fixture struct {
	builder *proposal.Builder
	store   *store.Store
	chains  *fakeChains
	hook    *recordHook
	ms      *types.Multisig
}

func newFixture(t *testing.T) *fixture {
	st := store.New(datatest.NewDB(t), nil, zap.NewNop(), 4)
	ms := &types.Multisig{
		Address:   multisigAddr,
		NetworkID: 1,
		Threshold: 2,
		Signatories: []types.MultisigSignatory{
			{Address: alice}, {Address: bob}, {Address: charlie},
		},
	}
	require.NoError(t, st.CreateMultisig(context.Background(), ms, 2))

	chains := &fakeChains{sub: &fakeSubstrateRelay{}, safe: &fakeSafeRelay{nonce: 3}}
	hook := &recordHook{}
	b := proposal.NewBuilder(chain.NewStaticRegistry(networks), st, chains, hook, zap.NewNop())
	return &fixture{builder: b, store: st, chains: chains, hook: hook, ms: ms}
}

func (f *fixture) draft(t *testing.T, transfers ...proposal.TransferRequest) *proposal.Draft {
	d, err := f.builder.Draft(context.Background(), proposal.DraftRequest{
		Network:   "polkadot",
		Multisig:  multisigAddr,
		Proposer:  alice,
		Transfers: transfers,
		Note:      "monthly",
	})
	require.NoError(t, err)
	return d
}

func aliceSigner(t *testing.T, extrinsic string) *proposal.Sr25519Signer {
	s, err := proposal.NewSr25519Signer(aliceSeed, extrinsic)
	require.NoError(t, err)
	return s
}

var polkadotCalls, _ = substrate.DefaultResolver("polkadot")

func pub(t *testing.T, addr string) []byte {
	t.Helper()
	b, err := address.Decode(addr)
	require.NoError(t, err)
	return b
}

func othersOf(t *testing.T, self string, signatories []string) [][]byte {
	t.Helper()
	all := make([][]byte, 0, len(signatories))
	for _, s := range signatories {
		all = append(all, pub(t, s))
	}
	return substratetest.Others(pub(t, self), all...)
}

// asMulti returns signer's as_multi extrinsic opening d.
func asMulti(t *testing.T, d *proposal.Draft, signer string, extensions ...byte) string {
	t.Helper()
	call, err := substrate.DecodeHex(d.CallData)
	require.NoError(t, err)
	mc := substratetest.AsMulti(t, polkadotCalls, uint16(d.Threshold), othersOf(t, signer, d.Signatories), call)
	return substratetest.Signed(t, pub(t, signer), mc, extensions...)
}

func TestSubmitTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "10.5"})
	require.Len(t, d.Recipients, 1)
	assert.Equal(t, "10500000000000", d.Recipients[0].Value)
	assert.Len(t, d.CallHash, 66)
	assert.Equal(t, proposal.StateDraft, d.State)

	res, err := f.builder.Submit(ctx, d, aliceSigner(t, asMulti(t, d, alice)))
	require.NoError(t, err)
	assert.Equal(t, d.CallHash, res.CallHash)
	assert.Equal(t, "0xfeed", res.RelayHash)
	assert.Equal(t, proposal.StateSubmitted, res.State)
	assert.Equal(t, 1, f.chains.sub.calls)

	pending, err := f.store.GetPending(ctx, f.ms.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{alice}, pending[0].Approvals)
	assert.Equal(t, "10500000000000", pending[0].Value)
	assert.Equal(t, "monthly", pending[0].Note)

	require.Len(t, f.hook.events, 1)
	ev := f.hook.events[0]
	assert.Equal(t, notify.TriggerInitiated, ev.Trigger)
	assert.Equal(t, []string{bob, charlie}, ev.Recipients)
	assert.Equal(t, d.CallHash, ev.CallHash)
}

func TestSubmitRelayFailureLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chains.sub.err = errors.New("1010: invalid transaction")

	d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "10.5"})
	_, err := f.builder.Submit(ctx, d, aliceSigner(t, asMulti(t, d, alice)))
	assert.ErrorIs(t, err, proposal.ErrRelay)
	assert.Equal(t, proposal.StateFailed, d.State)
	assert.Equal(t, 1, f.chains.sub.calls, "no retry")

	pending, err := f.store.GetPending(ctx, f.ms.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, f.hook.events)
}

func TestSubmitRejectsDuplicateCallHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "1"})
	ext := asMulti(t, d, alice)
	_, err := f.builder.Submit(ctx, d, aliceSigner(t, ext))
	require.NoError(t, err)

	_, err = f.builder.Submit(ctx, f.draft(t, proposal.TransferRequest{To: bob, Amount: "1"}), aliceSigner(t, ext))
	assert.ErrorIs(t, err, proposal.ErrDuplicateProposal)
	assert.Equal(t, 1, f.chains.sub.calls)
}

func TestSubmitSignatureFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := map[string]struct {
		signer func(d *proposal.Draft) proposal.Signer
		want   error
	}{
		"other key": {func(d *proposal.Draft) proposal.Signer {
			other, err := proposal.NewSr25519Signer("0x"+strings.Repeat("01", 32), asMulti(t, d, alice))
			require.NoError(t, err)
			return other
		}, proposal.ErrSignatureMismatch},
		"garbage signature": {func(d *proposal.Draft) proposal.Signer {
			return proposal.StaticSigner{Bytes: make([]byte, 64), Extrinsic: asMulti(t, d, alice)}
		}, proposal.ErrSignatureMismatch},
		"no signature": {func(*proposal.Draft) proposal.Signer { return proposal.StaticSigner{} }, proposal.ErrSigning},
		"no extrinsic": {func(*proposal.Draft) proposal.Signer { return aliceSigner(t, "") }, proposal.ErrSigning},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "2"})
			_, err := f.builder.Submit(ctx, d, tt.signer(d))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, proposal.StateFailed, d.State)
		})
	}
	assert.Zero(t, f.chains.sub.calls)
}

func TestSubmitChecksExtrinsicBeforeRelay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := f.draft(t, proposal.TransferRequest{To: charlie, Amount: "9"})

	tests := map[string]struct {
		extrinsic func(d *proposal.Draft) string
		want      error
	}{
		"junk": {func(*proposal.Draft) string { return "0x00" }, proposal.ErrInvalidRequest},
		"not hex": {func(*proposal.Draft) string { return "0xzz" }, proposal.ErrInvalidRequest},
		"plain transfer": {func(d *proposal.Draft) string {
			call, err := substrate.DecodeHex(d.CallData)
			require.NoError(t, err)
			return substratetest.Signed(t, pub(t, alice), call)
		}, proposal.ErrInvalidRequest},
		"different call": {func(*proposal.Draft) string { return asMulti(t, other, alice) }, proposal.ErrInvalidRequest},
		"wrong threshold": {func(d *proposal.Draft) string {
			call, err := substrate.DecodeHex(d.CallData)
			require.NoError(t, err)
			mc := substratetest.AsMulti(t, polkadotCalls, 3, othersOf(t, alice, d.Signatories), call)
			return substratetest.Signed(t, pub(t, alice), mc)
		}, proposal.ErrInvalidRequest},
		"other multisig": {func(d *proposal.Draft) string {
			call, err := substrate.DecodeHex(d.CallData)
			require.NoError(t, err)
			mc := substratetest.AsMulti(t, polkadotCalls, 2, othersOf(t, alice, []string{alice, bob, dave}), call)
			return substratetest.Signed(t, pub(t, alice), mc)
		}, proposal.ErrInvalidRequest},
		"signed by bob": {func(d *proposal.Draft) string {
			call, err := substrate.DecodeHex(d.CallData)
			require.NoError(t, err)
			mc := substratetest.AsMulti(t, polkadotCalls, 2, othersOf(t, alice, d.Signatories), call)
			return substratetest.Signed(t, pub(t, bob), mc)
		}, proposal.ErrSignatureMismatch},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "2"})
			_, err := f.builder.Submit(ctx, d, aliceSigner(t, tt.extrinsic(d)))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, proposal.StateFailed, d.State)
		})
	}
	assert.Zero(t, f.chains.sub.calls)
	pending, err := f.store.GetPending(ctx, f.ms.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitAcceptsNewerSignedExtensions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// CheckMetadataHash mode byte after the tip
	d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "4"})
	_, err := f.builder.Submit(ctx, d, aliceSigner(t, asMulti(t, d, alice, 0x00)))
	require.NoError(t, err)

	// approve_as_multi opens an operation by hash only
	d = f.draft(t, proposal.TransferRequest{To: charlie, Amount: "4"})
	hash, err := hexutil.Decode(d.CallHash)
	require.NoError(t, err)
	mc := substratetest.ApproveAsMulti(t, polkadotCalls, 2, othersOf(t, alice, d.Signatories), hash)
	_, err = f.builder.Submit(ctx, d, aliceSigner(t, substratetest.Signed(t, pub(t, alice), mc)))
	require.NoError(t, err)
	assert.Equal(t, 2, f.chains.sub.calls)
}

func TestSameCallOnTwoMultisigs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	carol, err := proposal.NewSr25519Signer(carolSeed, "")
	require.NoError(t, err)

	ms2 := &types.Multisig{
		Address:   otherAddr,
		NetworkID: 1,
		Threshold: 2,
		Signatories: []types.MultisigSignatory{
			{Address: alice}, {Address: carol.Address()}, {Address: charlie},
		},
	}
	require.NoError(t, f.store.CreateMultisig(ctx, ms2, 2))

	d1 := f.draft(t, proposal.TransferRequest{To: dave, Amount: "7"})
	d2, err := f.builder.Draft(ctx, proposal.DraftRequest{
		Network: "polkadot", Multisig: otherAddr, Proposer: alice,
		Transfers: []proposal.TransferRequest{{To: dave, Amount: "7"}},
	})
	require.NoError(t, err)
	require.Equal(t, d1.CallHash, d2.CallHash)

	_, err = f.builder.Submit(ctx, d1, aliceSigner(t, asMulti(t, d1, alice)))
	require.NoError(t, err)
	_, err = f.builder.Submit(ctx, d2, aliceSigner(t, asMulti(t, d2, alice)))
	require.NoError(t, err, "a pending call on one multisig is not a duplicate on another")

	sig, err := carol.Sign(ctx, &proposal.Draft{CallHash: d2.CallHash})
	require.NoError(t, err)
	hash, err := hexutil.Decode(d2.CallHash)
	require.NoError(t, err)
	approve := func(others [][]byte) proposal.ApproveRequest {
		mc := substratetest.ApproveAsMulti(t, polkadotCalls, 2, others, hash)
		return proposal.ApproveRequest{
			Network: "polkadot", Multisig: otherAddr, CallHash: d2.CallHash,
			Signer: carol.Address(), Signature: sig.Bytes,
			Extrinsic: substratetest.Signed(t, pub(t, carol.Address()), mc),
		}
	}

	_, err = f.builder.Approve(ctx, approve(othersOf(t, carol.Address(), []string{carol.Address(), bob, charlie})))
	assert.ErrorIs(t, err, proposal.ErrInvalidRequest)
	assert.Equal(t, 2, f.chains.sub.calls)

	approvals, err := f.builder.Approve(ctx, approve(othersOf(t, carol.Address(), d2.Signatories)))
	require.NoError(t, err)
	assert.Len(t, approvals, 2)
	assert.Equal(t, 3, f.chains.sub.calls)

	tx, err := f.store.PendingByHash(ctx, 1, f.ms.ID, d1.CallHash)
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, tx.Approvals)
}

func TestDraftValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := proposal.DraftRequest{Network: "polkadot", Multisig: multisigAddr, Proposer: alice,
		Transfers: []proposal.TransferRequest{{To: bob, Amount: "1"}}}

	bad := base
	bad.Transfers = []proposal.TransferRequest{{To: bob, Amount: "abc"}}
	_, err := f.builder.Draft(ctx, bad)
	assert.ErrorIs(t, err, proposal.ErrInvalidRequest)
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)

	bad = base
	bad.Transfers = []proposal.TransferRequest{{To: "nope", Amount: "1"}}
	_, err = f.builder.Draft(ctx, bad)
	assert.ErrorIs(t, err, proposal.ErrInvalidRequest)

	bad = base
	bad.Proposer = dave
	_, err = f.builder.Draft(ctx, bad)
	assert.ErrorIs(t, err, proposal.ErrNotSignatory)

	bad = base
	bad.Network = "solana"
	_, err = f.builder.Draft(ctx, bad)
	assert.ErrorIs(t, err, proposal.ErrInvalidRequest)

	bad = base
	bad.Multisig = dave
	_, err = f.builder.Draft(ctx, bad)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDraftBatchDecodesToEveryRecipient(t *testing.T) {
	f := newFixture(t)
	d := f.draft(t,
		proposal.TransferRequest{To: bob, Amount: "1"},
		proposal.TransferRequest{To: charlie, Amount: "0.25"},
	)
	assert.Equal(t, "1250000000000", d.Total)

	call, err := substrate.DecodeHex(d.CallData)
	require.NoError(t, err)
	r, _ := substrate.DefaultResolver("polkadot")
	dec, err := decoder.NewSubstrate(r, networks[0]).Decode(call)
	require.NoError(t, err)
	assert.Equal(t, "Utility.batch_all", dec.Method)
	assert.Equal(t, d.CallHash, dec.CallHash)
	require.Len(t, dec.Recipients, 2)
	assert.Equal(t, "250000000000", dec.Recipients[1].Value)
}

func TestSafeProposalAndApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	signerA, err := proposal.NewEcdsaSigner(ownerKeyA)
	require.NoError(t, err)
	signerB, err := proposal.NewEcdsaSigner("0x" + ownerKeyB)
	require.NoError(t, err)

	ms := &types.Multisig{
		Address:   safeAddr,
		NetworkID: 20,
		Threshold: 2,
		Signatories: []types.MultisigSignatory{
			{Address: signerA.Address().Hex()}, {Address: signerB.Address().Hex()},
		},
	}
	require.NoError(t, f.store.CreateMultisig(ctx, ms, 2))
	f.chains.sim = fakeSimulator{}

	d, err := f.builder.Draft(ctx, proposal.DraftRequest{
		Network:   "ethereum",
		Multisig:  safeAddr,
		Proposer:  signerA.Address().Hex(),
		Transfers: []proposal.TransferRequest{{To: recipient, Amount: "1.5"}},
	})
	require.NoError(t, err)

	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	want := safe.Transaction{To: common.HexToAddress(recipient), Value: value, Operation: safe.Call, Nonce: 3}.
		Hash(common.HexToAddress(safeAddr), 1)
	assert.Equal(t, want.Hex(), d.CallHash)

	res, err := f.builder.Submit(ctx, d, signerA)
	require.NoError(t, err)
	require.Len(t, f.chains.safe.proposals, 1)
	req := f.chains.safe.proposals[0]
	assert.Equal(t, signerA.Address().Hex(), req.Sender)
	assert.Equal(t, d.CallHash, req.ContractTransactionHash)
	assert.EqualValues(t, 3, req.Nonce)
	require.NotNil(t, res.Transaction.Nonce)

	sig, err := signerB.Sign(ctx, &proposal.Draft{CallHash: d.CallHash})
	require.NoError(t, err)
	approvals, err := f.builder.Approve(ctx, proposal.ApproveRequest{
		Network: "ethereum", Multisig: safeAddr, CallHash: d.CallHash, Signer: signerB.Address().Hex(), Signature: sig.Bytes,
	})
	require.NoError(t, err)
	assert.Len(t, approvals, 2)
	assert.Equal(t, []string{d.CallHash}, f.chains.safe.confirms)

	_, err = f.builder.Approve(ctx, proposal.ApproveRequest{
		Network: "ethereum", Multisig: safeAddr, CallHash: d.CallHash, Signer: signerB.Address().Hex(), Signature: sig.Bytes,
	})
	assert.ErrorIs(t, err, proposal.ErrAlreadyApproved)

	pending, err := f.store.GetPending(ctx, ms.ID)
	require.NoError(t, err)
	assert.Empty(t, pending, "threshold reached")
	assert.Len(t, f.hook.events, 2)
}

func TestSafeSimulationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	signerA, err := proposal.NewEcdsaSigner(ownerKeyA)
	require.NoError(t, err)
	ms := &types.Multisig{Address: safeAddr, NetworkID: 20, Threshold: 1,
		Signatories: []types.MultisigSignatory{{Address: signerA.Address().Hex()}}}
	require.NoError(t, f.store.CreateMultisig(ctx, ms, 1))
	f.chains.sim = fakeSimulator{err: errors.New("execution reverted")}

	d, err := f.builder.Draft(ctx, proposal.DraftRequest{
		Network: "ethereum", Multisig: safeAddr, Proposer: signerA.Address().Hex(),
		Transfers: []proposal.TransferRequest{
			{To: recipient, Amount: "1"},
			{To: recipient, Amount: "5", Token: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: ptr(int32(6))},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, d.Safe)
	assert.Equal(t, uint8(safe.DelegateCall), d.Safe.Operation)
	assert.Equal(t, safe.MultiSendCallOnly.Hex(), d.Safe.To)
	assert.Equal(t, "5000000", d.Recipients[1].Value)

	_, err = f.builder.Submit(ctx, d, signerA)
	assert.ErrorIs(t, err, proposal.ErrSimulation)
	assert.Empty(t, f.chains.safe.proposals)
}

func TestDraftCache(t *testing.T) {
	ctx := context.Background()
	rdb, mr := datatest.NewRedis(t)
	cache := proposal.NewDraftCache(rdb, 0)
	f := newFixture(t)
	d := f.draft(t, proposal.TransferRequest{To: bob, Amount: "3"})

	require.NoError(t, cache.Put(ctx, d))
	assert.Equal(t, proposal.DraftTTL, mr.TTL("draft:"+d.ID))

	got, err := cache.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.CallHash, got.CallHash)
	assert.Equal(t, d.Recipients, got.Recipients)

	require.NoError(t, cache.Delete(ctx, d.ID))
	_, err = cache.Get(ctx, d.ID)
	assert.ErrorIs(t, err, proposal.ErrDraftNotFound)

	require.NoError(t, cache.Put(ctx, d))
	mr.FastForward(16 * time.Minute)
	_, err = cache.Get(ctx, d.ID)
	assert.ErrorIs(t, err, proposal.ErrDraftNotFound)
}

func ptr[T any](v T) *T { return &v }
