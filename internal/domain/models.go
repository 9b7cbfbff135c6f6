package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template is the ordered list of output columns taken from a CSV header row.
type Template struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// DefaultTemplate returns the template used until the user uploads one.
func DefaultTemplate() Template {
	return Template{
		Name:    "default",
		Columns: []string{"Date", "Merchant", "Item", "Price", "Total"},
	}
}

// LineItem is one purchased item recognized on a receipt.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity,omitempty"`
	Price       string `json:"price,omitempty"`
	TotalPrice  string `json:"total_price,omitempty"`
}

// ExtractionResult holds the fields recognized on a single receipt image.
// Fields is a partial mapping: names the vendor did not return are absent.
type ExtractionResult struct {
	ID          uuid.UUID          `json:"id"`
	SourceName  string             `json:"source_name"`
	ReceiptType string             `json:"receipt_type,omitempty"`
	Fields      map[string]string  `json:"fields"`
	Confidence  map[string]float64 `json:"confidence,omitempty"`
	Items       []LineItem         `json:"items,omitempty"`
	ModelUsed   string             `json:"model_used"`
	ExtractedAt time.Time          `json:"extracted_at"`
}

// IsEmpty reports whether no field and no line item was recognized.
func (r *ExtractionResult) IsEmpty() bool {
	for _, v := range r.Fields {
		if v != "" {
			return false
		}
	}
	return len(r.Items) == 0
}

// Cell is a single (column, value) pair of a mapped output row.
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Session is the state kept for one browser between requests.
type Session struct {
	ID        string             `json:"id"`
	Template  Template           `json:"template"`
	Layout    RowLayout          `json:"layout"`
	Results   []ExtractionResult `json:"results"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RemoveResult deletes the result with the given ID and reports whether it existed.
func (s *Session) RemoveResult(id uuid.UUID) bool {
	for i := range s.Results {
		if s.Results[i].ID == id {
			s.Results = append(s.Results[:i], s.Results[i+1:]...)
			return true
		}
	}
	return false
}
