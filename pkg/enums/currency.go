package enums

// Currency of cart and checkout totals. Prices are sold in pence only.
type Currency string

const CurrencyGBP Currency = "GBP"

var currencies = []Currency{CurrencyGBP}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, err := ParseCurrency(string(c))
	return err == nil
}

func ParseCurrency(value string) (Currency, error) {
	return parse("currency", currencies, value)
}
