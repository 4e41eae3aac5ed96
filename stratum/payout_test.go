package stratum

import "testing"

func TestDistributeBlockCreditsProportionallyAndRetainsRemainder(t *testing.T) {
	pa := NewPayoutAccounting(nil, 0.01, 0.05)
	pa.RecordShare("addrA.rig1")
	pa.RecordShare("addrA.rig1")
	pa.RecordShare("addrA.rig1")
	pa.RecordShare("addrB")

	// reward=1000, feeRate=0.1 (outside the configured [min,max] but
	// DistributeBlock takes the caller's feeRate verbatim — clamping is
	// FeeRate's job, exercised separately below).
	pa.DistributeBlock(1000, 0.1, 12345)

	snap := pa.Snapshot()
	if snap.BlocksPaid != 1 {
		t.Fatalf("BlocksPaid = %d, want 1", snap.BlocksPaid)
	}
	if snap.TotalFees != 100 {
		t.Fatalf("TotalFees = %d, want 100", snap.TotalFees)
	}

	// payable = 1000-100 = 900; addrA has 3/4 shares -> 675, addrB 1/4 -> 225.
	a, ok := snap.Pending["addrA"]
	if !ok || a.Amount != 675 {
		t.Fatalf("addrA pending = %+v, want 675", a)
	}
	b, ok := snap.Pending["addrB"]
	if !ok || b.Amount != 225 {
		t.Fatalf("addrB pending = %+v, want 225", b)
	}

	// Round resets: a second block with no new shares credits nobody.
	pa.DistributeBlock(1000, 0.1, 12346)
	snap2 := pa.Snapshot()
	if snap2.Pending["addrA"].Amount != 675 {
		t.Fatalf("addrA pending changed after an empty round: %+v", snap2.Pending["addrA"])
	}
}

func TestDistributeBlockTruncationRemainderStaysWithPool(t *testing.T) {
	pa := NewPayoutAccounting(nil, 0, 1)
	pa.RecordShare("addrA")
	pa.RecordShare("addrB")
	pa.RecordShare("addrC")

	// payable=10, 3-way split: each gets floor(10/3)=3, 1 left over
	// uncredited (stays with the pool, not double-counted anywhere).
	pa.DistributeBlock(10, 0, 1)
	snap := pa.Snapshot()
	total := snap.Pending["addrA"].Amount + snap.Pending["addrB"].Amount + snap.Pending["addrC"].Amount
	if total != 9 {
		t.Fatalf("total credited = %d, want 9 (1 remainder retained by pool)", total)
	}
}

func TestFeeRateStepsAndClamp(t *testing.T) {
	pa := NewPayoutAccounting([]FeeStep{
		{WorkerCount: 0, FeeRate: 0.02},
		{WorkerCount: 50, FeeRate: 0.015},
		{WorkerCount: 200, FeeRate: 0.01},
	}, 0.005, 0.03)

	if r := pa.FeeRate(1); r != 0.02 {
		t.Fatalf("FeeRate(1) = %v, want 0.02", r)
	}
	if r := pa.FeeRate(50); r != 0.015 {
		t.Fatalf("FeeRate(50) = %v, want 0.015", r)
	}
	if r := pa.FeeRate(1000); r != 0.01 {
		t.Fatalf("FeeRate(1000) = %v, want 0.01", r)
	}

	// A step rate above maxFeeRate is clamped to maxFeeRate.
	clamped := NewPayoutAccounting([]FeeStep{{WorkerCount: 0, FeeRate: 0.5}}, 0.005, 0.03)
	if r := clamped.FeeRate(1); r != 0.03 {
		t.Fatalf("FeeRate(1) with a 0.5 step = %v, want 0.03 (clamped)", r)
	}
}

func TestPendingFIFOOrdersByCreatedAt(t *testing.T) {
	pa := NewPayoutAccounting(nil, 0, 1)
	pa.RecordShare("addrB")
	pa.DistributeBlock(100, 0, 200) // addrB created at t=200
	pa.RecordShare("addrA")
	pa.DistributeBlock(100, 0, 100) // addrA created at t=100

	fifo := pa.PendingFIFO()
	if len(fifo) != 2 {
		t.Fatalf("len(fifo) = %d, want 2", len(fifo))
	}
	if fifo[0].Address != "addrA" || fifo[1].Address != "addrB" {
		t.Fatalf("fifo order = %+v, want addrA before addrB", fifo)
	}
}

func TestRecordPayoutSentSupportsPartialPayout(t *testing.T) {
	pa := NewPayoutAccounting(nil, 0, 1)
	pa.RecordShare("addrA")
	pa.DistributeBlock(1000, 0, 1) // addrA pending = 1000

	pa.RecordPayoutSent("addrA", 400, "txid1", 2)
	snap := pa.Snapshot()
	if snap.Pending["addrA"].Amount != 600 {
		t.Fatalf("addrA pending after partial payout = %+v, want 600", snap.Pending["addrA"])
	}
	if snap.TotalPaid != 400 {
		t.Fatalf("TotalPaid = %d, want 400", snap.TotalPaid)
	}

	pa.RecordPayoutSent("addrA", 600, "txid2", 3)
	snap2 := pa.Snapshot()
	if _, ok := snap2.Pending["addrA"]; ok {
		t.Fatalf("addrA should have no pending balance after being paid in full")
	}
	if snap2.TotalPaid != 1000 {
		t.Fatalf("TotalPaid = %d, want 1000", snap2.TotalPaid)
	}
	if len(snap2.Completed) != 2 {
		t.Fatalf("len(Completed) = %d, want 2", len(snap2.Completed))
	}
}

func TestCompletedHistoryIsBounded(t *testing.T) {
	pa := NewPayoutAccounting(nil, 0, 1)
	for i := 0; i < maxCompletedHistory+10; i++ {
		pa.RecordPayoutSent("addr", 1, "tx", uint32(i))
	}
	snap := pa.Snapshot()
	if len(snap.Completed) != maxCompletedHistory {
		t.Fatalf("len(Completed) = %d, want %d", len(snap.Completed), maxCompletedHistory)
	}
	// Oldest entries should have been dropped, newest retained.
	last := snap.Completed[len(snap.Completed)-1]
	if last.PaidAt != uint32(maxCompletedHistory+9) {
		t.Fatalf("last completed PaidAt = %d, want %d", last.PaidAt, maxCompletedHistory+9)
	}
}

func TestLoadStateRestoresAccounting(t *testing.T) {
	pa := NewPayoutAccounting(nil, 0, 1)
	pa.RecordShare("addrA")
	pa.DistributeBlock(100, 0, 1)
	snap := pa.Snapshot()

	restored := NewPayoutAccounting(nil, 0, 1)
	restored.LoadState(snap)
	got := restored.Snapshot()
	if got.Pending["addrA"].Amount != snap.Pending["addrA"].Amount {
		t.Fatalf("restored pending mismatch: %+v vs %+v", got.Pending, snap.Pending)
	}
}
