package repo

import (
	"strings"
	"testing"
)

func TestBuildUpdateDeterministicOrder(t *testing.T) {
	paid := "PAID"
	fields := map[string]any{
		"status": paid,
		"trx_id": "T0001REF1",
		"paid_at": nil,
	}

	q, args, err := buildUpdate("ORDER-1", fields)
	if err != nil {
		t.Fatalf("buildUpdate() error = %v", err)
	}

	want := "UPDATE transactions SET paid_at = $2, status = $3, trx_id = $4, updated_at = NOW() WHERE merchant_ref = $1;"
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}
	if args[0] != "ORDER-1" {
		t.Errorf("args[0] = %v, want merchant ref first", args[0])
	}
	if args[1] != nil {
		t.Errorf("args[1] = %v, want nil for cleared paid_at", args[1])
	}
	if args[2] != paid || args[3] != "T0001REF1" {
		t.Errorf("args = %v, want values in sorted column order", args)
	}
}

func TestBuildUpdateRejectsUnknownColumn(t *testing.T) {
	_, _, err := buildUpdate("ORDER-1", map[string]any{"merchant_ref": "evil"})
	if err == nil {
		t.Fatal("buildUpdate() error = nil, want rejection of non-lifecycle column")
	}
	if !strings.Contains(err.Error(), "merchant_ref") {
		t.Errorf("error = %v, want it to name the column", err)
	}
}

func TestGatewayRefPrefersRealGatewayID(t *testing.T) {
	ref := "T0001REF1"
	cases := []struct {
		name string
		trx  Transaction
		want string
	}{
		{"gateway id set", Transaction{MerchantRef: "ORDER-1", TrxID: &ref}, "T0001REF1"},
		{"no gateway id", Transaction{MerchantRef: "ORDER-1"}, "ORDER-1"},
		{"simulated placeholder", Transaction{MerchantRef: "ORDER-1", TrxID: &ref, Simulated: true}, "ORDER-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.trx.GatewayRef(); got != tc.want {
				t.Fatalf("GatewayRef() = %q, want %q", got, tc.want)
			}
		})
	}
}
