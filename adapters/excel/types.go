package excel

// RawRowData represents a row of raw cell text keyed by normalized header
type RawRowData map[string]string

// ExcelData represents one sheet or CSV file
type ExcelData struct {
	Headers []string     // Column headers, lower case
	Rows    []RawRowData // Data rows
}
