package azure

// analyzeOperation is the body returned when polling an analyze operation.
type analyzeOperation struct {
	Status        string         `json:"status"`
	Error         *apiError      `json:"error,omitempty"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type analyzeResult struct {
	APIVersion string             `json:"apiVersion"`
	ModelID    string             `json:"modelId"`
	Documents  []analyzedDocument `json:"documents"`
}

type analyzedDocument struct {
	DocType    string                   `json:"docType"`
	Fields     map[string]documentField `json:"fields"`
	Confidence float64                  `json:"confidence"`
}

// documentField is a recognized field. Exactly one value* member is set,
// matching Type; Content always holds the raw text.
type documentField struct {
	Type               string                   `json:"type"`
	Content            string                   `json:"content"`
	Confidence         *float64                 `json:"confidence,omitempty"`
	ValueString        *string                  `json:"valueString,omitempty"`
	ValueDate          *string                  `json:"valueDate,omitempty"`
	ValueTime          *string                  `json:"valueTime,omitempty"`
	ValuePhoneNumber   *string                  `json:"valuePhoneNumber,omitempty"`
	ValueCountryRegion *string                  `json:"valueCountryRegion,omitempty"`
	ValueNumber        *float64                 `json:"valueNumber,omitempty"`
	ValueInteger       *int64                   `json:"valueInteger,omitempty"`
	ValueCurrency      *currencyValue           `json:"valueCurrency,omitempty"`
	ValueArray         []documentField          `json:"valueArray,omitempty"`
	ValueObject        map[string]documentField `json:"valueObject,omitempty"`
}

type currencyValue struct {
	Amount         float64 `json:"amount"`
	CurrencySymbol string  `json:"currencySymbol"`
	CurrencyCode   string  `json:"currencyCode"`
}
