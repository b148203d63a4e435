package storage

import (
	"context"
	"path/filepath"
	"testing"

	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSubscriptionRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sub := Subscription{ChatID: 100, Coin: "Bitcoin", IntervalMinutes: 60, ThreadID: 7, Enabled: true}
	if err := st.UpsertSubscription(ctx, sub); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}

	// Coin is normalized at the store boundary.
	got, ok, err := st.GetSubscription(ctx, 100, "BITCOIN")
	if err != nil || !ok {
		t.Fatalf("GetSubscription: ok=%v err=%v", ok, err)
	}
	if got.Coin != "bitcoin" || got.IntervalMinutes != 60 || got.ThreadID != 7 || !got.Enabled {
		t.Fatalf("unexpected subscription: %+v", got)
	}
	if got.LastDispatch != 0 {
		t.Fatalf("fresh subscription must have zero last-dispatch, got %d", got.LastDispatch)
	}
}

func TestUpsertKeepsLastDispatch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sub := Subscription{ChatID: 1, Coin: "bitcoin", IntervalMinutes: 60, Enabled: true}
	if err := st.UpsertSubscription(ctx, sub); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	if err := st.UpdateLastDispatch(ctx, 1, "bitcoin", 1_700_000_000); err != nil {
		t.Fatalf("UpdateLastDispatch: %v", err)
	}

	// Reconfigure the interval; the dispatch history must survive.
	sub.IntervalMinutes = 120
	if err := st.UpsertSubscription(ctx, sub); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, ok, err := st.GetSubscription(ctx, 1, "bitcoin")
	if err != nil || !ok {
		t.Fatalf("GetSubscription: ok=%v err=%v", ok, err)
	}
	if got.IntervalMinutes != 120 {
		t.Fatalf("interval = %d, want 120", got.IntervalMinutes)
	}
	if got.LastDispatch != 1_700_000_000 {
		t.Fatalf("last-dispatch = %d, want 1700000000", got.LastDispatch)
	}
}

func TestListEnabledSubscriptions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	subs := []Subscription{
		{ChatID: 1, Coin: "bitcoin", IntervalMinutes: 30, Enabled: true},
		{ChatID: 1, Coin: "ethereum", IntervalMinutes: 60, Enabled: true},
		{ChatID: 2, Coin: "bitcoin", IntervalMinutes: 30, Enabled: false},
	}
	for _, sub := range subs {
		if err := st.UpsertSubscription(ctx, sub); err != nil {
			t.Fatalf("UpsertSubscription(%+v): %v", sub, err)
		}
	}

	enabled, err := st.ListEnabledSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListEnabledSubscriptions: %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled, got %d", len(enabled))
	}
	for _, sub := range enabled {
		if !sub.Enabled {
			t.Fatalf("disabled row returned: %+v", sub)
		}
	}
}

func TestSetSubscriptionEnabled(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertSubscription(ctx, Subscription{ChatID: 1, Coin: "bitcoin", IntervalMinutes: 30, Enabled: true}); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}

	ok, err := st.SetSubscriptionEnabled(ctx, 1, "bitcoin", false)
	if err != nil || !ok {
		t.Fatalf("SetSubscriptionEnabled: ok=%v err=%v", ok, err)
	}
	enabled, err := st.ListEnabledSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListEnabledSubscriptions: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("expected no enabled rows, got %d", len(enabled))
	}

	ok, err = st.SetSubscriptionEnabled(ctx, 9, "nope", true)
	if err != nil {
		t.Fatalf("SetSubscriptionEnabled(missing): %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing row")
	}
}

func TestDeleteSubscription(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertSubscription(ctx, Subscription{ChatID: 1, Coin: "bitcoin", IntervalMinutes: 30, Enabled: true}); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	ok, err := st.DeleteSubscription(ctx, 1, "bitcoin")
	if err != nil || !ok {
		t.Fatalf("DeleteSubscription: ok=%v err=%v", ok, err)
	}
	_, found, err := st.GetSubscription(ctx, 1, "bitcoin")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if found {
		t.Fatal("subscription still present after delete")
	}
	ok, err = st.DeleteSubscription(ctx, 1, "bitcoin")
	if err != nil {
		t.Fatalf("second DeleteSubscription: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for already-deleted row")
	}
}

func TestChatPrefixRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p, err := st.GetChatPrefix(ctx, 42)
	if err != nil {
		t.Fatalf("GetChatPrefix: %v", err)
	}
	if p != "" {
		t.Fatalf("expected empty default prefix, got %q", p)
	}

	if err := st.SetChatPrefix(ctx, 42, "n!"); err != nil {
		t.Fatalf("SetChatPrefix: %v", err)
	}
	p, err = st.GetChatPrefix(ctx, 42)
	if err != nil || p != "n!" {
		t.Fatalf("GetChatPrefix = %q, %v; want n!", p, err)
	}

	// Overwrite.
	if err := st.SetChatPrefix(ctx, 42, ""); err != nil {
		t.Fatalf("SetChatPrefix(clear): %v", err)
	}
	p, err = st.GetChatPrefix(ctx, 42)
	if err != nil || p != "" {
		t.Fatalf("GetChatPrefix after clear = %q, %v", p, err)
	}
}

func TestListChatSubscriptions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, sub := range []Subscription{
		{ChatID: 1, Coin: "ethereum", IntervalMinutes: 60, Enabled: true},
		{ChatID: 1, Coin: "bitcoin", IntervalMinutes: 30, Enabled: false},
		{ChatID: 2, Coin: "bitcoin", IntervalMinutes: 30, Enabled: true},
	} {
		if err := st.UpsertSubscription(ctx, sub); err != nil {
			t.Fatalf("UpsertSubscription: %v", err)
		}
	}

	subs, err := st.ListChatSubscriptions(ctx, 1)
	if err != nil {
		t.Fatalf("ListChatSubscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 rows for chat 1, got %d", len(subs))
	}
	// Ordered by coin.
	if subs[0].Coin != "bitcoin" || subs[1].Coin != "ethereum" {
		t.Fatalf("unexpected order: %+v", subs)
	}
}
