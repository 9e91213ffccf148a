package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Default pattern tables. Each one is a named, replaceable unit so a locale
// or vendor variant can swap patterns without touching the extraction flow.
var (
	// MerchantDenylist rejects lines that cannot be a merchant name, such as
	// card networks and document boilerplate. Substring match on purpose:
	// "Receipts R Us" is still more likely a header than a store name.
	MerchantDenylist = regexp.MustCompile(`(?i)(total|visa|mastercard|debit|credit|invoice|receipt)`)

	// DatePatterns are tried in order against the joined text and the first
	// match wins, so the least ambiguous format takes priority.
	DatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{4}[-/](?:0?[1-9]|1[0-2])[-/](?:0?[1-9]|[12]\d|3[01]))\b`),
		regexp.MustCompile(`(?i)\b((?:0?[1-9]|1[0-2])[-/](?:0?[1-9]|[12]\d|3[01])[-/]\d{2,4})\b`),
		regexp.MustCompile(`(?i)\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},\s+\d{4})\b`),
	}

	// TotalKeywords marks the line that carries the receipt total. Note that
	// "subtotal" does not match: the word boundary keeps it out.
	TotalKeywords = regexp.MustCompile(`(?i)\b(total|amount due|balance due|grand total)\b`)

	// TaxKeywords marks the line that carries the tax amount.
	TaxKeywords = regexp.MustCompile(`(?i)\b(tax|hst|gst|vat)\b`)

	// LooseAmount matches a number with an optional dollar sign and optional
	// cents. Used on lines already identified by a keyword.
	LooseAmount = regexp.MustCompile(`\$?\s*([0-9]+(?:\.[0-9]{2})?)`)

	// StrictAmount requires the dollar sign and cents. Used when scanning
	// arbitrary lines, where a bare number is usually a quantity or a date.
	StrictAmount = regexp.MustCompile(`\$\s*([0-9]+\.[0-9]{2})`)

	// ItemExclusions drops total and tax rows from the item window.
	ItemExclusions = regexp.MustCompile(`(?i)\b(total|tax)\b`)
)

// Tables groups the patterns an Extractor consults.
type Tables struct {
	MerchantDenylist *regexp.Regexp
	DatePatterns     []*regexp.Regexp
	TotalKeywords    *regexp.Regexp
	TaxKeywords      *regexp.Regexp
	LooseAmount      *regexp.Regexp
	StrictAmount     *regexp.Regexp
	ItemExclusions   *regexp.Regexp
}

// DefaultTables returns the stock pattern tables.
func DefaultTables() Tables {
	return Tables{
		MerchantDenylist: MerchantDenylist,
		DatePatterns:     DatePatterns,
		TotalKeywords:    TotalKeywords,
		TaxKeywords:      TaxKeywords,
		LooseAmount:      LooseAmount,
		StrictAmount:     StrictAmount,
		ItemExclusions:   ItemExclusions,
	}
}

// Item is one purchased line: the line as printed and the amount found on it.
type Item struct {
	Line   string
	Amount string
}

// Record holds the fields recovered from a receipt's OCR text. Total is set
// only when a positive amount was found; Tax is set whenever a tax keyword
// line exists, even if no amount could be read from it.
type Record struct {
	Merchant string
	Date     string
	Total    *float64
	Tax      *float64
	Items    []Item
	RawText  string
}

// Extractor applies a set of pattern tables to OCR lines.
type Extractor struct {
	tables Tables
}

// NewExtractor returns an extractor using the default tables.
func NewExtractor() *Extractor {
	return NewExtractorWithTables(DefaultTables())
}

// NewExtractorWithTables returns an extractor using custom tables.
func NewExtractorWithTables(tables Tables) *Extractor {
	return &Extractor{tables: tables}
}

// Extract runs the default extractor over OCR lines in reading order.
func Extract(lines []string) Record {
	return NewExtractor().Extract(lines)
}

// Extract recovers merchant, date, total, tax and item lines from OCR text.
// It never fails: fields that cannot be read come back empty.
func (e *Extractor) Extract(lines []string) Record {
	rec := Record{RawText: strings.Join(lines, "\n")}

	rec.Merchant = e.merchant(lines)
	rec.Date = e.date(rec.RawText)

	totalLine := firstMatch(lines, e.tables.TotalKeywords)
	totalVal := e.amount(totalLine)
	if totalVal == 0 {
		totalVal = e.largestStrictAmount(lines)
	}
	if totalVal > 0 {
		rec.Total = &totalVal
	}

	if taxLine := firstMatch(lines, e.tables.TaxKeywords); taxLine != "" {
		taxVal := e.amount(taxLine)
		rec.Tax = &taxVal
	}

	rec.Items = e.items(lines, rec.Merchant, totalLine)
	return rec
}

// merchant returns the first non-empty line that clears the denylist.
func (e *Extractor) merchant(lines []string) string {
	for _, line := range lines {
		clean := strings.TrimSpace(line)
		if clean == "" || e.tables.MerchantDenylist.MatchString(clean) {
			continue
		}
		return clean
	}
	return ""
}

// date returns the first date found in the joined text, trying each pattern
// in table order.
func (e *Extractor) date(joined string) string {
	for _, pat := range e.tables.DatePatterns {
		if m := pat.FindStringSubmatch(joined); m != nil {
			return m[1]
		}
	}
	return ""
}

// amount returns the first loose amount on the line, or zero when the line
// has none or the number does not parse.
func (e *Extractor) amount(line string) float64 {
	m := e.tables.LooseAmount.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// largestStrictAmount scans every line for dollar-and-cents amounts and
// returns the largest, or zero when there are none.
func (e *Extractor) largestStrictAmount(lines []string) float64 {
	largest := 0.0
	for _, line := range lines {
		for _, m := range e.tables.StrictAmount.FindAllStringSubmatch(line, -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if v > largest {
				largest = v
			}
		}
	}
	return largest
}

// items collects lines between the merchant line and the total line that
// carry an amount and are not themselves total or tax rows. Both boundary
// lines must exist for the window to be meaningful.
func (e *Extractor) items(lines []string, merchant, totalLine string) []Item {
	if merchant == "" || totalLine == "" {
		return nil
	}
	start := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == merchant {
			start = i
			break
		}
	}
	end := len(lines)
	for i, line := range lines {
		if line == totalLine {
			end = i
			break
		}
	}
	if start+1 > end {
		return nil
	}

	var items []Item
	for _, line := range lines[start+1 : end] {
		m := e.tables.LooseAmount.FindStringSubmatch(line)
		if m == nil || e.tables.ItemExclusions.MatchString(line) {
			continue
		}
		items = append(items, Item{Line: strings.TrimSpace(line), Amount: m[1]})
	}
	return items
}

// firstMatch returns the first line the pattern matches, or "".
func firstMatch(lines []string, pat *regexp.Regexp) string {
	for _, line := range lines {
		if pat.MatchString(line) {
			return line
		}
	}
	return ""
}
