package payments

import "testing"

func TestLedgerResolveIsOneShot(t *testing.T) {
	l := NewLedger()
	l.Register("A0001", PendingPayment{ChatID: 42, AmountToman: 50_000})

	p, ok := l.Resolve("A0001")
	if !ok {
		t.Fatal("expected pending payment")
	}
	if p.ChatID != 42 || p.AmountToman != 50_000 {
		t.Errorf("unexpected payment %+v", p)
	}

	if _, ok := l.Resolve("A0001"); ok {
		t.Error("second resolve must fail")
	}
	if _, ok := l.Resolve("unknown"); ok {
		t.Error("unknown authority must not resolve")
	}
}
