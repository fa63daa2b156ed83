package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code       Code
		status     int
		publicMsg  string
		retryable  bool
		detailsOK  bool
		userFacing bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true, userFacing: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", userFacing: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", userFacing: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true, userFacing: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true},
		{code: CodeInvalidReference, status: http.StatusUnprocessableEntity, publicMsg: "item is not available for purchase", detailsOK: true, userFacing: true},
		{code: CodeEmptyCart, status: http.StatusUnprocessableEntity, publicMsg: "cart is empty", userFacing: true},
		{code: CodeSignatureMismatch, status: http.StatusBadRequest, publicMsg: "payment verification failed"},
		{code: CodeOrderNotFound, status: http.StatusNotFound, publicMsg: "order not found", userFacing: true},
		{code: CodeAlreadyVerified, status: http.StatusConflict, publicMsg: "order already verified", userFacing: true},
		{code: CodeDuplicateRefund, status: http.StatusConflict, publicMsg: "a refund is already open for this purchase", userFacing: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.UserFacing != tt.userFacing {
			t.Fatalf("code %s expected user facing %v got %v", tt.code, tt.userFacing, meta.UserFacing)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("gateway timeout")
	err := Wrap(CodeDependency, cause, "create gateway order")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause")
	}
	if err.Message() != "create gateway order" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestAsFindsTypedErrorThroughFmtWrap(t *testing.T) {
	typed := New(CodeEmptyCart, "cart is empty")
	wrapped := fmt.Errorf("create order: %w", typed)

	got := As(wrapped)
	if got == nil || got.Code() != CodeEmptyCart {
		t.Fatalf("expected EMPTY_CART, got %v", got)
	}
	if !IsCode(wrapped, CodeEmptyCart) {
		t.Fatalf("IsCode should match through wrapping")
	}
	if IsCode(stdErrors.New("plain"), CodeEmptyCart) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"reason": "required"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["reason"] != "required" {
		t.Fatalf("unexpected details %#v", err.Details())
	}
}

func TestDumpFieldsCarriesCodeAndChain(t *testing.T) {
	err := fmt.Errorf("verify: %w", New(CodeAlreadyVerified, "order already verified"))
	fields := Dump(err).Fields()

	if fields["error_code"] != CodeAlreadyVerified {
		t.Fatalf("expected error_code, got %v", fields["error_code"])
	}
	chain, ok := fields["error_chain"].([]string)
	if !ok || len(chain) != 2 {
		t.Fatalf("expected two-link chain, got %#v", fields["error_chain"])
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted for non-postgres errors")
	}
}
