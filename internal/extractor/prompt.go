package extractor

// BuildReceiptPrompt returns the extraction prompt for receipt images.
func BuildReceiptPrompt() string {
	return `You are a receipt data extraction assistant. Analyze the provided receipt image and extract its data into the following JSON structure.

IMPORTANT INSTRUCTIONS:
- Extract EVERY purchased line item. Do not extract tax, tip, subtotal or total lines as items.
- Normalize the transaction date to YYYY-MM-DD and the time to HH:MM:SS.
- Amounts are plain numbers without currency symbols.
- Currency is the ISO 4217 code when it can be determined, otherwise empty.

Return ONLY valid JSON with no markdown formatting, no code fences and no explanation.

Return three top-level keys: "receipt_type", "data" and "confidence_scores".

The "data" object must follow this schema:
{
  "merchant_name": "",
  "merchant_address": "",
  "merchant_phone": "",
  "transaction_date": "",
  "transaction_time": "",
  "currency": "",
  "items": [
    {"description": "", "quantity": null, "price": null, "total_price": null}
  ],
  "subtotal": null,
  "tax": null,
  "tip": null,
  "total": null
}

The "confidence_scores" object maps each top-level key of "data" except "items" to a float between 0.0 and 1.0. Use 0.0 for fields not found on the receipt.

If a field is not present on the receipt, use empty string for text and null for numbers. Use 0 only when the receipt prints a zero amount.`
}
