package book

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/depthview/internal/domain"
)

func TestParseQuotes(t *testing.T) {
	got, err := ParseQuotes([]domain.Quote{
		{Price: "101.50", Quantity: "2"},
		{Price: "102", Quantity: "0.000"},
	})
	if err != nil {
		t.Fatalf("ParseQuotes: %v", err)
	}
	assertLevels(t, got, levels("101.5", "2", "102", "0"))
}

func TestParseQuoteTrimsWhitespace(t *testing.T) {
	got, err := ParseQuote(domain.Quote{Price: " 101.5 ", Quantity: "\t2\n"})
	if err != nil {
		t.Fatalf("ParseQuote: %v", err)
	}
	assertLevels(t, []Level{got}, levels("101.5", "2"))

	d, err := ParseDecimal(" 0.010 ")
	if err != nil || d.String() != "0.01" {
		t.Fatalf("ParseDecimal = %v, %v", d, err)
	}
}

func TestParseQuotesRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		quote domain.Quote
	}{
		{"empty price", domain.Quote{Price: "", Quantity: "1"}},
		{"non-numeric price", domain.Quote{Price: "abc", Quantity: "1"}},
		{"zero price", domain.Quote{Price: "0", Quantity: "1"}},
		{"negative price", domain.Quote{Price: "-1", Quantity: "1"}},
		{"non-numeric quantity", domain.Quote{Price: "100", Quantity: "1x"}},
		{"negative quantity", domain.Quote{Price: "100", Quantity: "-0.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuotes([]domain.Quote{{Price: "99", Quantity: "1"}, tt.quote})
			if !errors.Is(err, domain.ErrMalformedLevel) {
				t.Fatalf("err = %v, want ErrMalformedLevel", err)
			}
		})
	}
}
