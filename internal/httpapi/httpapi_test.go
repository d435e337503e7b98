package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contentops/aicore/internal/coordinator"
)

func TestStatusForErrMapsTaxonomyToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&coordinator.ValidationError{Reason: "bad"}, http.StatusBadRequest},
		{&coordinator.BudgetExceededError{TenantID: "acme"}, http.StatusPaymentRequired},
		{errHistoryDisabled, http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := statusForErr(tc.err); got != tc.want {
			t.Errorf("statusForErr(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestTenantFromRequestReadsHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	if got := tenantFromRequest(req); got != "acme" {
		t.Errorf("expected acme, got %q", got)
	}
}
