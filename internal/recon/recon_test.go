package recon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
)

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

type fakeStore struct {
	mu      sync.Mutex
	trx     *repo.Transaction
	updates []map[string]any
}

func (f *fakeStore) load() (*repo.Transaction, error) {
	if f.trx == nil {
		return nil, repo.ErrNotFound
	}
	cp := *f.trx
	return &cp, nil
}

func (f *fakeStore) ByReference(ctx context.Context, ref string) (*repo.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *fakeStore) ByMerchantRef(ctx context.Context, merchantRef string) (*repo.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *fakeStore) UpdateFields(ctx context.Context, merchantRef string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	applyFields(f.trx, fields)
	return nil
}

type fakeGateway struct {
	detail *tripay.Detail
	err    error
	calls  int
}

func (f *fakeGateway) TransactionDetail(ctx context.Context, reference string) (*tripay.Detail, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

type fakeFulfiller struct {
	mu     sync.Mutex
	calls  int
	result *catalog.OrderResult
	err    error
}

func (f *fakeFulfiller) CreateOrder(ctx context.Context, serviceCode, target, zone string) (*catalog.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeNotifier) NotifyStatus(ctx context.Context, trx *repo.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, trx.Status)
}

func unpaidTransaction() *repo.Transaction {
	return &repo.Transaction{
		ID:          1,
		MerchantRef: "ORDER-7-1756000000-a1b2c3d4",
		UserID:      7,
		ChatID:      7,
		GameCode:    "mobile-legends",
		GameName:    "Mobile Legends",
		ServiceCode: "ML86",
		ItemName:    "86 Diamonds",
		PlayerID:    "123456789",
		Amount:      22000,
		TotalAmount: 23450,
		Channel:     "QRIS",
		Status:      tripay.StatusUnpaid,
	}
}

func detailWith(status string) *tripay.Detail {
	return &tripay.Detail{
		Invoice: tripay.Invoice{
			Reference:   "T0001REF1",
			MerchantRef: "ORDER-7-1756000000-a1b2c3d4",
			Status:      status,
			PayCode:     "88881234567890",
			CheckoutURL: "https://tripay.co.id/checkout/T0001REF1",
			ExpiredTime: 1756100000,
		},
		PaidAt: 1756090000,
	}
}

func TestSyncCapturesGatewayFields(t *testing.T) {
	store := &fakeStore{trx: unpaidTransaction()}
	gateway := &fakeGateway{detail: detailWith(tripay.StatusUnpaid)}
	r := New(store, gateway, nil, nil, nil, nil)

	trx, err := r.Sync(context.Background(), "ORDER-7-1756000000-a1b2c3d4")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if len(store.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(store.updates))
	}
	fields := store.updates[0]
	if _, ok := fields["status"]; ok {
		t.Error("status written although unchanged")
	}
	for _, key := range []string{"trx_id", "pay_code", "pay_url", "expired_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("field %q missing from diff", key)
		}
	}
	if trx.TrxID == nil || *trx.TrxID != "T0001REF1" {
		t.Errorf("TrxID = %v, want captured gateway reference", trx.TrxID)
	}
	if trx.Status != tripay.StatusUnpaid {
		t.Errorf("Status = %q, want UNPAID", trx.Status)
	}
}

func TestSyncNeverRegressesTerminalStatus(t *testing.T) {
	trx := unpaidTransaction()
	trx.Status = tripay.StatusPaid
	ref := "T0001REF1"
	trx.TrxID = &ref
	payCode := "88881234567890"
	trx.PayCode = &payCode
	payURL := "https://tripay.co.id/checkout/T0001REF1"
	trx.PayURL = &payURL
	now := detailWith(tripay.StatusUnpaid)
	now.QRString = ""
	expiredAt := timeFromUnix(1756100000)
	trx.ExpiredAt = &expiredAt
	paidAt := timeFromUnix(1756090000)
	trx.PaidAt = &paidAt

	store := &fakeStore{trx: trx}
	gateway := &fakeGateway{detail: now}
	r := New(store, gateway, nil, nil, nil, nil)

	synced, err := r.Sync(context.Background(), trx.MerchantRef)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if synced.Status != tripay.StatusPaid {
		t.Errorf("Status = %q, want PAID kept against UNPAID readback", synced.Status)
	}
	if len(store.updates) != 0 {
		t.Errorf("updates = %v, want none", store.updates)
	}
}

func TestSyncExplicitTerminalOverwrites(t *testing.T) {
	trx := unpaidTransaction()
	trx.Status = tripay.StatusExpired

	store := &fakeStore{trx: trx}
	gateway := &fakeGateway{detail: detailWith(tripay.StatusPaid)}
	r := New(store, gateway, nil, nil, nil, nil)

	synced, err := r.Sync(context.Background(), trx.MerchantRef)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if synced.Status != tripay.StatusPaid {
		t.Errorf("Status = %q, want explicit PAID to overwrite EXPIRED", synced.Status)
	}
	if synced.PaidAt == nil {
		t.Error("PaidAt = nil, want gateway paid_at captured")
	}
}

func TestHandleCallbackFulfillsExactlyOnce(t *testing.T) {
	store := &fakeStore{trx: unpaidTransaction()}
	gateway := &fakeGateway{detail: detailWith(tripay.StatusPaid)}
	fulfiller := &fakeFulfiller{result: &catalog.OrderResult{TrxID: "VIP123", Status: "processing", SN: "SN-778"}}
	notifier := &fakeNotifier{}
	r := New(store, gateway, fulfiller, notifier, nil, nil)

	first, err := r.HandleCallback(context.Background(), "ORDER-7-1756000000-a1b2c3d4")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if !first.StatusChanged || first.Old != tripay.StatusUnpaid || first.New != tripay.StatusPaid {
		t.Fatalf("first outcome = %+v, want UNPAID -> PAID change", first)
	}
	if fulfiller.calls != 1 {
		t.Fatalf("fulfillment calls = %d, want 1", fulfiller.calls)
	}
	if len(notifier.statuses) != 1 || notifier.statuses[0] != tripay.StatusPaid {
		t.Fatalf("notifications = %v, want single PAID", notifier.statuses)
	}
	if store.trx.ProviderTrxID == nil || *store.trx.ProviderTrxID != "VIP123" {
		t.Errorf("ProviderTrxID = %v, want VIP123 recorded", store.trx.ProviderTrxID)
	}
	if store.trx.SerialNumber == nil || *store.trx.SerialNumber != "SN-778" {
		t.Errorf("SerialNumber = %v, want SN-778 recorded", store.trx.SerialNumber)
	}

	// The gateway retries callbacks; a replay must be a no-op.
	second, err := r.HandleCallback(context.Background(), "ORDER-7-1756000000-a1b2c3d4")
	if err != nil {
		t.Fatalf("replay HandleCallback() error = %v", err)
	}
	if second.StatusChanged {
		t.Error("replay StatusChanged = true, want false")
	}
	if fulfiller.calls != 1 {
		t.Errorf("fulfillment calls after replay = %d, want still 1", fulfiller.calls)
	}
	if len(notifier.statuses) != 1 {
		t.Errorf("notifications after replay = %d, want still 1", len(notifier.statuses))
	}
}

func TestHandleCallbackFulfillmentFailureDoesNotFailCallback(t *testing.T) {
	store := &fakeStore{trx: unpaidTransaction()}
	gateway := &fakeGateway{detail: detailWith(tripay.StatusPaid)}
	fulfiller := &fakeFulfiller{err: errors.New("provider down")}
	notifier := &fakeNotifier{}
	r := New(store, gateway, fulfiller, notifier, nil, nil)

	outcome, err := r.HandleCallback(context.Background(), "ORDER-7-1756000000-a1b2c3d4")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v, want nil despite fulfillment failure", err)
	}
	if !outcome.StatusChanged {
		t.Error("StatusChanged = false, want true")
	}
	if len(notifier.statuses) != 1 {
		t.Errorf("notifications = %d, want user still notified", len(notifier.statuses))
	}
}

func TestHandleCallbackGatewayErrorPropagates(t *testing.T) {
	store := &fakeStore{trx: unpaidTransaction()}
	gateway := &fakeGateway{err: errors.New("gateway timeout")}
	r := New(store, gateway, nil, nil, nil, nil)

	if _, err := r.HandleCallback(context.Background(), "ORDER-7-1756000000-a1b2c3d4"); err == nil {
		t.Fatal("HandleCallback() error = nil, want gateway error")
	}
	if store.trx.Status != tripay.StatusUnpaid {
		t.Errorf("Status mutated to %q on gateway error", store.trx.Status)
	}
}

func TestHandleCallbackUnknownRef(t *testing.T) {
	r := New(&fakeStore{}, &fakeGateway{}, nil, nil, nil, nil)
	if _, err := r.HandleCallback(context.Background(), "ORDER-missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("error = %v, want repo.ErrNotFound", err)
	}
}
