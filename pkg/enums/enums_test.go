package enums

import "testing"

func TestParseCompetitionStatus(t *testing.T) {
	status, err := ParseCompetitionStatus("live")
	if err != nil || status != CompetitionStatusLive {
		t.Fatalf("expected live, got %q err=%v", status, err)
	}
	if _, err := ParseCompetitionStatus("LIVE"); err == nil {
		t.Fatalf("expected case-sensitive parse to fail")
	}
}

func TestCurrencyOnlyGBP(t *testing.T) {
	if !CurrencyGBP.IsValid() {
		t.Fatalf("GBP should be valid")
	}
	if Currency("USD").IsValid() {
		t.Fatalf("USD should not be valid")
	}
}

func TestOutboxEnums(t *testing.T) {
	if _, err := ParseOutboxEventType("checkout_submitted"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if OutboxAggregateType("order").IsValid() {
		t.Fatalf("order aggregate should not be valid")
	}
	if role, err := ParseUserRole("admin"); err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin role, got %q err=%v", role, err)
	}
}

func TestParseErrorNamesKind(t *testing.T) {
	_, err := ParseCartStatus("abandoned")
	if err == nil || err.Error() != `invalid cart status "abandoned"` {
		t.Fatalf("unexpected error %v", err)
	}
	if !CartStatusConverted.IsValid() {
		t.Fatalf("converted should be valid")
	}
}
