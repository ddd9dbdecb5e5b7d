package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodePrecondition, status: http.StatusPreconditionFailed, publicMsg: "precondition failed", detailsOK: true},
		{code: CodeInvariant, status: http.StatusInternalServerError, publicMsg: "internal server error"},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
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
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestCodeForStatusRoundTripsKnownStatuses(t *testing.T) {
	for _, code := range []Code{CodeValidation, CodeUnauthorized, CodeNotFound, CodePrecondition, CodeStateConflict} {
		if got := CodeForStatus(MetadataFor(code).HTTPStatus); got != code {
			t.Fatalf("status for %s mapped back to %s", code, got)
		}
	}
	if got := CodeForStatus(http.StatusBadGateway); got != CodeDependency {
		t.Fatalf("expected dependency for 502, got %s", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestIsCodeFollowsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodePrecondition, "cart empty"))
	if !IsCode(err, CodePrecondition) {
		t.Fatalf("expected precondition code in chain")
	}
	if IsCode(err, CodeDependency) {
		t.Fatalf("unexpected dependency code")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error should not match")
	}
}

func TestDumpWalksChainAndPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_items_cart_competition_key", TableName: "cart_items"}
	err := Wrap(CodeConflict, fmt.Errorf("insert item: %w", pgErr), "item already in cart")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", d.Chain)
	}
	if d.PG == nil || d.PG.Constraint != "cart_items_cart_competition_key" {
		t.Fatalf("expected postgres details, got %+v", d.PG)
	}
	if d.LogFields()["pg_code"] != "23505" {
		t.Fatalf("pg_code missing from log fields")
	}
}

func TestDumpWithoutDriverErrorOmitsPostgresFields(t *testing.T) {
	fields := Dump(stdErrors.New("plain")).LogFields()
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("unexpected pg fields: %v", fields)
	}
	if fields["error"] != "plain" {
		t.Fatalf("unexpected message %v", fields["error"])
	}
}
