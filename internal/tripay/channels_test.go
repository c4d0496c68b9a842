package tripay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestChannelFeeDecodeToleratesStrings(t *testing.T) {
	payload := []byte(`{
		"group":"Virtual Account","code":"BRIVA","name":"BRI Virtual Account",
		"total_fee":{"flat":4250,"percent":"0.7"},
		"minimum_fee":"5000","maximum_fee":null,"active":true
	}`)

	var ch Channel
	if err := json.Unmarshal(payload, &ch); err != nil {
		t.Fatalf("unmarshal channel: %v", err)
	}
	if ch.TotalFee.Flat != 4250 {
		t.Errorf("Flat = %v, want 4250", ch.TotalFee.Flat)
	}
	if ch.TotalFee.Percent != 0.7 {
		t.Errorf("Percent = %v, want 0.7", ch.TotalFee.Percent)
	}
	if ch.MinimumFee != 5000 {
		t.Errorf("MinimumFee = %v, want 5000", ch.MinimumFee)
	}
}

func TestChannelFeeFor(t *testing.T) {
	cases := []struct {
		name    string
		channel Channel
		amount  int64
		want    int64
	}{
		{
			"flat plus percent rounded up",
			Channel{TotalFee: Fee{Flat: 750, Percent: 0.7}},
			100000,
			1450,
		},
		{
			"fraction rounds up",
			Channel{TotalFee: Fee{Flat: 0, Percent: 0.7}},
			10001,
			71,
		},
		{
			"minimum clamp",
			Channel{TotalFee: Fee{Flat: 100, Percent: 0}, MinimumFee: 1500},
			10000,
			1500,
		},
		{
			"maximum clamp",
			Channel{TotalFee: Fee{Flat: 0, Percent: 2}, MaximumFee: 5000},
			1000000,
			5000,
		},
		{
			"free channel",
			Channel{},
			50000,
			0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.channel.FeeFor(tc.amount); got != tc.want {
				t.Fatalf("FeeFor(%d) = %d, want %d", tc.amount, got, tc.want)
			}
		})
	}
}

type fakeChannelAPI struct {
	channels []Channel
	err      error
	calls    int
}

func (f *fakeChannelAPI) Channels(ctx context.Context) ([]Channel, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.channels, nil
}

func TestChannelServiceFiltersInactive(t *testing.T) {
	api := &fakeChannelAPI{channels: []Channel{
		{Code: "QRIS", Name: "QRIS", Active: true},
		{Code: "BRIVA", Name: "BRI Virtual Account", Active: true},
		{Code: "OLD", Name: "Retired", Active: false},
	}}
	svc := NewChannelService(api, nil, 0)

	channels, err := svc.Channels(context.Background())
	if err != nil {
		t.Fatalf("Channels() error = %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("len(channels) = %d, want 2 active", len(channels))
	}

	ch, err := svc.ChannelByCode(context.Background(), "QRIS")
	if err != nil {
		t.Fatalf("ChannelByCode() error = %v", err)
	}
	if ch.Name != "QRIS" {
		t.Errorf("Name = %q, want QRIS", ch.Name)
	}
	if _, err := svc.ChannelByCode(context.Background(), "OLD"); err == nil {
		t.Error("ChannelByCode(OLD) error = nil, want not available")
	}
}

type memChannelCache struct {
	data map[string][]byte
}

func (m *memChannelCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memChannelCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = raw
	return nil
}

func (m *memChannelCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestChannelServiceCacheRoundTrip(t *testing.T) {
	cache := &memChannelCache{}
	api := &fakeChannelAPI{channels: []Channel{{Code: "QRIS", Active: true}}}
	svc := NewChannelService(api, nil, 0)
	svc.cache = cache

	if _, err := svc.Channels(context.Background()); err != nil {
		t.Fatalf("first Channels() error = %v", err)
	}
	if _, err := svc.Channels(context.Background()); err != nil {
		t.Fatalf("cached Channels() error = %v", err)
	}
	if api.calls != 1 {
		t.Errorf("api calls = %d, want 1 (second read from cache)", api.calls)
	}

	if err := svc.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := svc.Channels(context.Background()); err != nil {
		t.Fatalf("Channels() after invalidate error = %v", err)
	}
	if api.calls != 2 {
		t.Errorf("api calls = %d, want 2 after invalidate", api.calls)
	}
}

func TestChannelServiceStaleFallback(t *testing.T) {
	api := &fakeChannelAPI{channels: []Channel{{Code: "QRIS", Active: true}}}
	svc := NewChannelService(api, nil, 0)

	if _, err := svc.Channels(context.Background()); err != nil {
		t.Fatalf("warm Channels() error = %v", err)
	}

	api.err = errors.New("gateway down")
	channels, err := svc.Channels(context.Background())
	if err != nil {
		t.Fatalf("Channels() with gateway down = %v, want stale copy", err)
	}
	if len(channels) != 1 || channels[0].Code != "QRIS" {
		t.Errorf("channels = %+v, want stale QRIS entry", channels)
	}

	api2 := &fakeChannelAPI{err: errors.New("gateway down")}
	svc2 := NewChannelService(api2, nil, 0)
	if _, err := svc2.Channels(context.Background()); err == nil {
		t.Error("Channels() error = nil, want error with no stale copy")
	}
}
