package domain

// Canonical field names produced by every extractor.
const (
	FieldDate     = "Date"
	FieldTime     = "Time"
	FieldMerchant = "Merchant"
	FieldAddress  = "Address"
	FieldPhone    = "Phone"
	FieldItem     = "Item"
	FieldQuantity = "Quantity"
	FieldPrice    = "Price"
	FieldSubtotal = "Subtotal"
	FieldTax      = "Tax"
	FieldTip      = "Tip"
	FieldTotal    = "Total"
	FieldCurrency = "Currency"
)

// RowLayout controls how extraction results are expanded into output rows.
type RowLayout string

const (
	// LayoutReceipt writes one row per receipt.
	LayoutReceipt RowLayout = "receipt"
	// LayoutItems writes one row per line item.
	LayoutItems RowLayout = "items"
)

// ParseRowLayout returns the layout named by s, defaulting to LayoutReceipt.
func ParseRowLayout(s string) RowLayout {
	if RowLayout(s) == LayoutItems {
		return LayoutItems
	}
	return LayoutReceipt
}

// ExtractionErrorKind classifies a failed call to the document-analysis service.
type ExtractionErrorKind string

const (
	ExtractionNetwork     ExtractionErrorKind = "network"
	ExtractionAuth        ExtractionErrorKind = "auth"
	ExtractionRateLimited ExtractionErrorKind = "rate_limited"
	ExtractionVendor      ExtractionErrorKind = "vendor"
	ExtractionResponse    ExtractionErrorKind = "response"
)

// AllowedImageTypes maps accepted receipt file extensions to content types.
var AllowedImageTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heif",
	"heif": "image/heif",
	"pdf":  "application/pdf",
}

// AllowedContentTypes is the set of sniffed content types accepted for receipts.
var AllowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/bmp":       {},
	"image/tiff":      {},
	"image/heif":      {},
	"application/pdf": {},
}
