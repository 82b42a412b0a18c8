// Package parser turns pasted delivery lists into pending orders.
//
// Input is whatever operators copy out of spreadsheets and chats: one order
// per line, either tab-separated columns (address, phone, time window) or a
// free-form line with the time window at the end.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"delivery-zoner/internal/models"
)

const timePart = `\d{1,2}(?::\d{2})?`

var (
	// whole-field time range, e.g. "с 9:00-12:00"
	timeRangeRe = regexp.MustCompile(`^(?i:[сc])?\s*(` + timePart + `)\s*[-–—]\s*(` + timePart + `)$`)

	// time range closing a free-form line, after a comma, semicolon or parenthesis
	trailingTimeRe = regexp.MustCompile(`[,;(]\s*((?i:[сc])?\s*` + timePart + `\s*[-–—]\s*` + timePart + `)\s*\)?\s*$`)

	phoneFieldRe  = regexp.MustCompile(`^\+?[\d\s\-()]{7,}$`)
	phoneInlineRe = regexp.MustCompile(`(?:^|[\s,;])(\+\d[\d\s\-()]{5,}\d|\(?\d{2}\)?[\s\-]?\d{3}[\s\-]\d{2}[\s\-]\d{2})\s*$`)

	bulletRe     = regexp.MustCompile(`^(?:\d{1,3}[.)]\s+|[-•*–]\s+)`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
	multiCommaRe = regexp.MustCompile(`\s*,(?:\s*,)+`)
	spaceCommaRe = regexp.MustCompile(`\s+,`)

	// apartment, entrance, floor, corpus and office qualifiers with their number
	qualifierRe = regexp.MustCompile(`(?i)(?:^|[\s,])(?:квартира|кв|подъезд|под|этаж|эт|корпус|корп|офис|оф)\.?\s*№?\s*\d+[а-яa-z]?`)
)

var (
	skipPrefixes = []string{"#", "//"}
	// a header row starts with the column name as a whole word
	headerRe = regexp.MustCompile(`^(?:адрес|address)(?:$|[\s:,;])`)
)

var idCounter atomic.Uint64

func nextID() string {
	return fmt.Sprintf("ord-%d-%d", time.Now().UnixMilli(), idCounter.Add(1))
}

// ParseOrders splits text into lines and returns one pending order per line
// that carries an address. Comment and header lines are skipped, as are lines
// whose address is empty once qualifiers are removed. Output order follows
// input order.
func ParseOrders(text string) []models.Order {
	text = norm.NFC.String(text)

	var orders []models.Order
	skipped := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}
		o, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		orders = append(orders, o)
	}

	zap.L().Debug("parser: parsed orders", zap.Int("orders", len(orders)), zap.Int("skipped", skipped))
	return orders
}

func parseLine(line string) (models.Order, bool) {
	if isSkippable(line) {
		return models.Order{}, false
	}

	var address, phone, window string
	if strings.Contains(line, "\t") {
		address, phone, window = splitTabbed(line)
	} else {
		address, phone, window = splitFreeForm(line)
	}

	address = tidy(address)
	geocodeAddress := CleanAddress(address)
	if geocodeAddress == "" {
		return models.Order{}, false
	}

	return models.Order{
		ID:             nextID(),
		Address:        address,
		GeocodeAddress: geocodeAddress,
		Phone:          phone,
		TimeWindow:     window,
		State:          models.GeocodePending,
		Zone:           models.Unassigned,
	}, true
}

func isSkippable(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range skipPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return headerRe.MatchString(lower)
}

func splitTabbed(line string) (address, phone, window string) {
	fields := strings.Split(line, "\t")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	address = fields[0]

	rest := fields[1:]
	for len(rest) > 0 && rest[len(rest)-1] == "" {
		rest = rest[:len(rest)-1]
	}
	if n := len(rest); n > 0 {
		if w, ok := normalizeTimeRange(rest[n-1]); ok {
			window = w
			rest = rest[:n-1]
		}
	}
	for _, f := range rest {
		if phone == "" && isPhone(f) {
			phone = f
		}
	}
	return address, phone, window
}

func splitFreeForm(line string) (address, phone, window string) {
	address = line
	if loc := trailingTimeRe.FindStringSubmatchIndex(address); loc != nil {
		if w, ok := normalizeTimeRange(address[loc[2]:loc[3]]); ok {
			window = w
			address = address[:loc[0]]
		}
	}

	if loc := phoneInlineRe.FindStringSubmatchIndex(address); loc != nil {
		candidate := address[loc[2]:loc[3]]
		if isPhone(candidate) {
			phone = strings.TrimSpace(candidate)
			address = address[:loc[2]]
		}
	}
	return address, phone, window
}

// normalizeTimeRange accepts "H[:MM]-H[:MM]" with an optional leading "с"
// and returns it as "from-to".
func normalizeTimeRange(s string) (string, bool) {
	m := timeRangeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}

func isPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phoneFieldRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7
}

// tidy strips list bullets and collapses whitespace and repeated commas
func tidy(address string) string {
	address = strings.TrimSpace(address)
	address = bulletRe.ReplaceAllString(address, "")
	address = multiSpaceRe.ReplaceAllString(address, " ")
	address = multiCommaRe.ReplaceAllString(address, ",")
	address = spaceCommaRe.ReplaceAllString(address, ",")
	return strings.Trim(address, " ,;")
}

// CleanAddress returns the form of address sent to the geocoder: apartment,
// entrance, floor, corpus and office qualifiers are removed.
func CleanAddress(address string) string {
	cleaned := qualifierRe.ReplaceAllString(address, "")
	return tidy(cleaned)
}
