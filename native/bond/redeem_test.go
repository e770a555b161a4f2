package bond

import (
	"errors"
	"math/big"
	"testing"

	"bondengine/core/events"
)

func seedRecord(state *mockEngineState, owed int64, vestingBlocks, lastBlock uint64) {
	state.records[depositorAddr] = &BondRecord{
		Depositor:     depositorAddr,
		PayoutOwed:    big.NewInt(owed),
		VestingBlocks: vestingBlocks,
		LastBlock:     lastBlock,
		PricePaid:     100,
	}
}

func TestPercentVested(t *testing.T) {
	record := &BondRecord{VestingBlocks: 10_000, LastBlock: 0}
	cases := []struct {
		height uint64
		want   uint64
	}{
		{0, 0},
		{2_500, 2_500},
		{5_000, 5_000},
		{10_000, 10_000},
		{99_999, 10_000},
	}
	for _, tc := range cases {
		if got := percentVested(record, tc.height); got != tc.want {
			t.Fatalf("vested at %d: got %d want %d", tc.height, got, tc.want)
		}
	}
	if got := percentVested(&BondRecord{VestingBlocks: 0}, 0); got != 10_000 {
		t.Fatalf("zero vesting window must count as fully vested, got %d", got)
	}
}

func TestPendingPayoutFor(t *testing.T) {
	engine, state, _, _ := newTestEngine(hugeSupply())
	seedRecord(state, 10_000_000_000, 10_000, 0)

	engine.SetBlockHeight(2_500)
	pending, err := engine.PendingPayoutFor(depositorAddr)
	if err != nil {
		t.Fatalf("pending payout: %v", err)
	}
	if pending.Cmp(big.NewInt(2_500_000_000)) != 0 {
		t.Fatalf("pending at quarter vest: got %s", pending)
	}

	engine.SetBlockHeight(20_000)
	pending, err = engine.PendingPayoutFor(depositorAddr)
	if err != nil {
		t.Fatalf("pending payout: %v", err)
	}
	if pending.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("pending past vest: got %s", pending)
	}

	missing, err := engine.PendingPayoutFor(daoAddr)
	if err != nil {
		t.Fatalf("pending for unknown depositor: %v", err)
	}
	if missing.Sign() != 0 {
		t.Fatalf("expected zero pending for unknown depositor, got %s", missing)
	}
}

func TestRedeemWithoutRecord(t *testing.T) {
	engine, _, _, _ := newTestEngine(hugeSupply())
	if _, err := engine.Redeem(depositorAddr); !errors.Is(err, ErrNoActiveBond) {
		t.Fatalf("expected ErrNoActiveBond, got %v", err)
	}
}

func TestRedeemPartialsSumToFullPayout(t *testing.T) {
	engine, state, treasury, _ := newTestEngine(hugeSupply())
	seedRecord(state, 10_000_000_000, 10_000, 0)

	total := big.NewInt(0)

	engine.SetBlockHeight(2_500)
	paid, err := engine.Redeem(depositorAddr)
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if paid.Cmp(big.NewInt(2_500_000_000)) != 0 {
		t.Fatalf("first tranche: got %s", paid)
	}
	total.Add(total, paid)
	record := state.records[depositorAddr]
	if record.LastBlock != 0 {
		t.Fatalf("partial redeem must not restart vesting, last block %d", record.LastBlock)
	}

	engine.SetBlockHeight(5_000)
	paid, err = engine.Redeem(depositorAddr)
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	total.Add(total, paid)

	engine.SetBlockHeight(10_000)
	paid, err = engine.Redeem(depositorAddr)
	if err != nil {
		t.Fatalf("final redeem: %v", err)
	}
	total.Add(total, paid)

	if total.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("tranches must sum to the full payout: got %s", total)
	}
	if _, ok := state.records[depositorAddr]; ok {
		t.Fatalf("record must be deleted on full vest")
	}
	if len(treasury.payouts) != 3 {
		t.Fatalf("expected three treasury payouts, got %d", len(treasury.payouts))
	}

	if _, err := engine.Redeem(depositorAddr); !errors.Is(err, ErrNoActiveBond) {
		t.Fatalf("expected ErrNoActiveBond after closure, got %v", err)
	}
}

func TestRedeemFullVestClosesRecord(t *testing.T) {
	engine, state, _, emitter := newTestEngine(hugeSupply())
	seedRecord(state, 10_000_000_000, 10_000, 0)

	engine.SetBlockHeight(10_000)
	paid, err := engine.Redeem(depositorAddr)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if paid.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("full payout: got %s", paid)
	}
	if _, ok := state.records[depositorAddr]; ok {
		t.Fatalf("record not deleted")
	}
	redeemed := emitter.byType(events.TypeBondRedeemed)
	if len(redeemed) != 1 || redeemed[0].Attributes["remaining"] != "0" {
		t.Fatalf("unexpected bond.redeemed: %+v", redeemed)
	}
}

func TestRedeemTreasuryFailureKeepsRecord(t *testing.T) {
	engine, state, treasury, _ := newTestEngine(hugeSupply())
	seedRecord(state, 10_000_000_000, 10_000, 0)
	treasury.payoutErr = errors.New("reserve offline")

	engine.SetBlockHeight(5_000)
	if _, err := engine.Redeem(depositorAddr); !errors.Is(err, ErrTreasuryUnavailable) {
		t.Fatalf("expected ErrTreasuryUnavailable, got %v", err)
	}
	record := state.records[depositorAddr]
	if record == nil || record.PayoutOwed.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("record mutated on failed payout: %+v", record)
	}
}

func TestRedeemNothingVestedYet(t *testing.T) {
	engine, state, treasury, _ := newTestEngine(hugeSupply())
	seedRecord(state, 10_000_000_000, 10_000, 0)

	paid, err := engine.Redeem(depositorAddr)
	if err != nil {
		t.Fatalf("redeem at deposit block: %v", err)
	}
	if paid.Sign() != 0 {
		t.Fatalf("expected zero payout, got %s", paid)
	}
	if len(treasury.payouts) != 0 {
		t.Fatalf("treasury called for a zero payout")
	}
	if state.records[depositorAddr].PayoutOwed.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("owed payout changed: %s", state.records[depositorAddr].PayoutOwed)
	}
}
