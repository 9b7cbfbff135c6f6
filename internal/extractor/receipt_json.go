package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"receiptcsv/internal/domain"
)

// receiptData is the "data" object BuildReceiptPrompt asks a language model to return.
// Amounts are pointers so that a printed 0.00 is kept apart from a null amount.
type receiptData struct {
	MerchantName    string  `json:"merchant_name"`
	MerchantAddress string  `json:"merchant_address"`
	MerchantPhone   string  `json:"merchant_phone"`
	TransactionDate string  `json:"transaction_date"`
	TransactionTime string  `json:"transaction_time"`
	Currency        string  `json:"currency"`
	Subtotal        *float64 `json:"subtotal"`
	Tax             *float64 `json:"tax"`
	Tip             *float64 `json:"tip"`
	Total           *float64 `json:"total"`
	Items           []struct {
		Description string   `json:"description"`
		Quantity    *float64 `json:"quantity"`
		Price       *float64 `json:"price"`
		TotalPrice  *float64 `json:"total_price"`
	} `json:"items"`
}

// confidenceKeys maps receiptData keys to canonical field names.
var confidenceKeys = map[string]string{
	"merchant_name":    domain.FieldMerchant,
	"merchant_address": domain.FieldAddress,
	"merchant_phone":   domain.FieldPhone,
	"transaction_date": domain.FieldDate,
	"transaction_time": domain.FieldTime,
	"currency":         domain.FieldCurrency,
	"subtotal":         domain.FieldSubtotal,
	"tax":              domain.FieldTax,
	"tip":              domain.FieldTip,
	"total":            domain.FieldTotal,
}

// ParseReceiptJSON converts the JSON text a language model produced for
// BuildReceiptPrompt into an ExtractionResult. Null amounts and empty strings
// are treated as not recognized. A markdown code fence around the JSON is tolerated.
func ParseReceiptJSON(provider, text, model string) (*domain.ExtractionResult, error) {
	text = stripCodeFence(text)

	var parsed struct {
		ReceiptType      string             `json:"receipt_type"`
		Data             receiptData        `json:"data"`
		ConfidenceScores map[string]float64 `json:"confidence_scores"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, ResponseError(provider, fmt.Errorf("parsing LLM JSON output: %w (raw: %s)", err, Truncate(text, 500)))
	}

	return toResult(parsed.ReceiptType, &parsed.Data, parsed.ConfidenceScores, model), nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func toResult(receiptType string, d *receiptData, scores map[string]float64, model string) *domain.ExtractionResult {
	res := &domain.ExtractionResult{
		ReceiptType: receiptType,
		Fields:      map[string]string{},
		Confidence:  map[string]float64{},
		ModelUsed:   model,
	}

	set := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			res.Fields[name] = value
		}
	}
	setMoney := func(name string, value *float64) {
		if value != nil {
			res.Fields[name] = FormatMoney(*value)
		}
	}

	set(domain.FieldMerchant, d.MerchantName)
	set(domain.FieldAddress, d.MerchantAddress)
	set(domain.FieldPhone, d.MerchantPhone)
	set(domain.FieldDate, d.TransactionDate)
	set(domain.FieldTime, d.TransactionTime)
	set(domain.FieldCurrency, d.Currency)
	setMoney(domain.FieldSubtotal, d.Subtotal)
	setMoney(domain.FieldTax, d.Tax)
	setMoney(domain.FieldTip, d.Tip)
	setMoney(domain.FieldTotal, d.Total)

	var descs, qtys, prices []string
	for _, it := range d.Items {
		item := domain.LineItem{Description: strings.TrimSpace(it.Description)}
		if it.Quantity != nil {
			item.Quantity = FormatQuantity(*it.Quantity)
		}
		if it.Price != nil {
			item.Price = FormatMoney(*it.Price)
		}
		if it.TotalPrice != nil {
			item.TotalPrice = FormatMoney(*it.TotalPrice)
		}
		if item == (domain.LineItem{}) {
			continue
		}
		res.Items = append(res.Items, item)

		descs = append(descs, item.Description)
		qtys = append(qtys, item.Quantity)
		p := item.TotalPrice
		if p == "" {
			p = item.Price
		}
		prices = append(prices, p)
	}
	set(domain.FieldItem, JoinNonEmpty(descs))
	set(domain.FieldQuantity, JoinNonEmpty(qtys))
	set(domain.FieldPrice, JoinNonEmpty(prices))

	for key, score := range scores {
		field, ok := confidenceKeys[key]
		if !ok {
			continue
		}
		if _, present := res.Fields[field]; present {
			res.Confidence[field] = score
		}
	}

	return res
}
