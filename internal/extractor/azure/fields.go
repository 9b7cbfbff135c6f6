package azure

import (
	"strconv"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/extractor"
)

// receiptFields maps prebuilt-receipt field names to canonical names.
// Money fields are formatted with two decimals.
var receiptFields = []struct {
	source string
	target string
	money  bool
}{
	{"MerchantName", domain.FieldMerchant, false},
	{"MerchantAddress", domain.FieldAddress, false},
	{"MerchantPhoneNumber", domain.FieldPhone, false},
	{"TransactionDate", domain.FieldDate, false},
	{"TransactionTime", domain.FieldTime, false},
	{"Subtotal", domain.FieldSubtotal, true},
	{"TotalTax", domain.FieldTax, true},
	{"Tip", domain.FieldTip, true},
	{"Total", domain.FieldTotal, true},
}

// toResult converts the first analyzed document into an ExtractionResult.
// A result without documents yields an empty result.
func toResult(ar *analyzeResult, model string) *domain.ExtractionResult {
	res := &domain.ExtractionResult{
		Fields:     map[string]string{},
		Confidence: map[string]float64{},
		ModelUsed:  model,
	}
	if ar.ModelID != "" {
		res.ModelUsed = ar.ModelID
	}
	if len(ar.Documents) == 0 {
		return res
	}

	doc := ar.Documents[0]
	res.ReceiptType = doc.DocType

	for _, rf := range receiptFields {
		f, ok := doc.Fields[rf.source]
		if !ok {
			continue
		}
		v := text(f)
		if rf.money {
			v = money(f)
		}
		if v == "" {
			continue
		}
		res.Fields[rf.target] = v
		if f.Confidence != nil {
			res.Confidence[rf.target] = *f.Confidence
		}
	}

	if total, ok := doc.Fields["Total"]; ok && total.ValueCurrency != nil && total.ValueCurrency.CurrencyCode != "" {
		res.Fields[domain.FieldCurrency] = total.ValueCurrency.CurrencyCode
	}

	if items, ok := doc.Fields["Items"]; ok {
		res.Items = lineItems(items)
	}
	if len(res.Items) > 0 {
		var descs, qtys, prices []string
		for _, it := range res.Items {
			descs = append(descs, it.Description)
			qtys = append(qtys, it.Quantity)
			p := it.TotalPrice
			if p == "" {
				p = it.Price
			}
			prices = append(prices, p)
		}
		setNonEmpty(res.Fields, domain.FieldItem, extractor.JoinNonEmpty(descs))
		setNonEmpty(res.Fields, domain.FieldQuantity, extractor.JoinNonEmpty(qtys))
		setNonEmpty(res.Fields, domain.FieldPrice, extractor.JoinNonEmpty(prices))
	}

	return res
}

func lineItems(f documentField) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(f.ValueArray))
	for _, el := range f.ValueArray {
		obj := el.ValueObject
		if obj == nil {
			if c := el.Content; c != "" {
				items = append(items, domain.LineItem{Description: c})
			}
			continue
		}
		item := domain.LineItem{
			Description: text(obj["Description"]),
			Quantity:    text(obj["Quantity"]),
			Price:       money(obj["Price"]),
			TotalPrice:  money(obj["TotalPrice"]),
		}
		if item == (domain.LineItem{}) {
			continue
		}
		items = append(items, item)
	}
	return items
}

// text returns the typed value of f as a string, falling back to its content.
func text(f documentField) string {
	switch {
	case f.ValueString != nil:
		return *f.ValueString
	case f.ValueDate != nil:
		return *f.ValueDate
	case f.ValueTime != nil:
		return *f.ValueTime
	case f.ValuePhoneNumber != nil:
		return *f.ValuePhoneNumber
	case f.ValueCountryRegion != nil:
		return *f.ValueCountryRegion
	case f.ValueInteger != nil:
		return strconv.FormatInt(*f.ValueInteger, 10)
	case f.ValueNumber != nil:
		return extractor.FormatQuantity(*f.ValueNumber)
	case f.ValueCurrency != nil:
		return extractor.FormatMoney(f.ValueCurrency.Amount)
	}
	return f.Content
}

// money returns the amount held by f with two decimals, falling back to its content.
func money(f documentField) string {
	switch {
	case f.ValueCurrency != nil:
		return extractor.FormatMoney(f.ValueCurrency.Amount)
	case f.ValueNumber != nil:
		return extractor.FormatMoney(*f.ValueNumber)
	case f.ValueInteger != nil:
		return extractor.FormatMoney(float64(*f.ValueInteger))
	}
	return f.Content
}

func setNonEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
