// Package mapping turns extraction results into rows shaped by a template.
// Every function in this package is pure.
package mapping

import (
	"sort"
	"strings"
	"unicode"

	"receiptcsv/internal/domain"
)

// aliases maps normalized column names to the canonical field they refer to.
var aliases = map[string]string{
	"merchantname":    domain.FieldMerchant,
	"vendor":          domain.FieldMerchant,
	"vendorname":      domain.FieldMerchant,
	"store":           domain.FieldMerchant,
	"storename":       domain.FieldMerchant,
	"shop":            domain.FieldMerchant,
	"payee":           domain.FieldMerchant,
	"merchantaddress": domain.FieldAddress,
	"storeaddress":    domain.FieldAddress,
	"merchantphone":   domain.FieldPhone,
	"phonenumber":     domain.FieldPhone,
	"transactiondate": domain.FieldDate,
	"purchasedate":    domain.FieldDate,
	"receiptdate":     domain.FieldDate,
	"transactiontime": domain.FieldTime,
	"description":     domain.FieldItem,
	"items":           domain.FieldItem,
	"product":         domain.FieldItem,
	"itemname":        domain.FieldItem,
	"qty":             domain.FieldQuantity,
	"quantity":        domain.FieldQuantity,
	"unitprice":       domain.FieldPrice,
	"itemprice":       domain.FieldPrice,
	"cost":            domain.FieldPrice,
	"amount":          domain.FieldTotal,
	"grandtotal":      domain.FieldTotal,
	"totalamount":     domain.FieldTotal,
	"totalprice":      domain.FieldTotal,
	"subtotalamount":  domain.FieldSubtotal,
	"vat":             domain.FieldTax,
	"gst":             domain.FieldTax,
	"totaltax":        domain.FieldTax,
	"salestax":        domain.FieldTax,
	"tips":            domain.FieldTip,
	"gratuity":        domain.FieldTip,
	"currencycode":    domain.FieldCurrency,
}

// Normalize lowercases name and drops every rune that is not a letter or digit.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Resolve returns the value for column from fields. It tries the exact name,
// then a normalized match, then the alias table.
func Resolve(column string, fields map[string]string) (string, bool) {
	if v, ok := fields[column]; ok {
		return v, true
	}
	norm := Normalize(column)
	if norm == "" {
		return "", false
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if Normalize(name) == norm {
			return fields[name], true
		}
	}
	if canonical, ok := aliases[norm]; ok {
		if v, ok := fields[canonical]; ok {
			return v, true
		}
	}
	return "", false
}

// Map returns one (column, value) pair per template column, in template order.
// Columns the result does not resolve map to an empty value.
func Map(tpl domain.Template, res domain.ExtractionResult) []domain.Cell {
	cells := make([]domain.Cell, len(tpl.Columns))
	for i, col := range tpl.Columns {
		v, _ := Resolve(col, res.Fields)
		cells[i] = domain.Cell{Column: col, Value: v}
	}
	return cells
}

// Values returns the values of cells in order.
func Values(cells []domain.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Value
	}
	return out
}

// Rows expands results into output rows following layout.
func Rows(tpl domain.Template, results []domain.ExtractionResult, layout domain.RowLayout) [][]domain.Cell {
	var rows [][]domain.Cell
	for i := range results {
		if layout == domain.LayoutItems {
			rows = append(rows, itemRows(tpl, results[i])...)
			continue
		}
		rows = append(rows, Map(tpl, results[i]))
	}
	return rows
}

// itemRows writes one row per line item. Receipt-level fields repeat on every
// row; the receipt total only appears on the last one.
func itemRows(tpl domain.Template, res domain.ExtractionResult) [][]domain.Cell {
	if len(res.Items) == 0 {
		return [][]domain.Cell{Map(tpl, res)}
	}

	rows := make([][]domain.Cell, 0, len(res.Items))
	for i, item := range res.Items {
		fields := make(map[string]string, len(res.Fields))
		for k, v := range res.Fields {
			fields[k] = v
		}
		fields[domain.FieldItem] = item.Description
		fields[domain.FieldQuantity] = item.Quantity
		fields[domain.FieldPrice] = itemPrice(item)
		if i < len(res.Items)-1 {
			delete(fields, domain.FieldTotal)
		}
		row := Map(tpl, domain.ExtractionResult{Fields: fields})
		rows = append(rows, row)
	}
	return rows
}

func itemPrice(item domain.LineItem) string {
	if item.TotalPrice != "" {
		return item.TotalPrice
	}
	return item.Price
}
