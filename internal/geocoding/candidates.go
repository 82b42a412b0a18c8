package geocoding

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	cityName   = "Минск"
	regionName = "Минская область"
)

type districtPattern struct {
	re       *regexp.Regexp
	district string
}

// settlements outside the city limits, keyed to their district
var districtPatterns = []districtPattern{
	{regexp.MustCompile(`(?i)боровлян|копищ|колодищ|ждановичи|сениц|мачулищ|заславл|щомыслиц|ратомк`), "Минский"},
	{regexp.MustCompile(`(?i)смолевич|жодино|смиловичи`), "Смолевичский"},
	{regexp.MustCompile(`(?i)дзержинск|фаниполь`), "Дзержинский"},
	{regexp.MustCompile(`(?i)логойск|плещениц`), "Логойский"},
	{regexp.MustCompile(`(?i)молодечн`), "Молодечненский"},
	{regexp.MustCompile(`(?i)пуховичи|марьина горка`), "Пуховичский"},
	{regexp.MustCompile(`(?i)червен`), "Червенский"},
}

var (
	explicitDistrictRe = regexp.MustCompile(`(?i)(?:^|[\s,])([а-яё]+(?:ский|цкий))\s+(?:р-н|р\.|район)`)
	cityMentionRe      = regexp.MustCompile(`(?i)(?:^|[\s,.])минск(?:$|[\s,])`)
	streetRe           = regexp.MustCompile(`(?i)(?:^|[\s,])(ул(?:ица)?|пр(?:-т|осп(?:ект)?)?|пер(?:еулок)?|б-р|бульвар|пл(?:ощадь)?|тракт|проезд|шоссе|туп(?:ик)?)(\.\s*|\s+)([а-яёa-z][а-яёa-z0-9 .\-]*?)\s*,?\s*(?:д(?:ом)?\.?\s*)?(\d+[а-яa-z]?(?:/\d+)?)(?:$|[\s,])`)
)

// DetectDistrict returns the district an out-of-city address belongs to,
// either named explicitly ("Минский р-н") or inferred from a settlement name.
func DetectDistrict(address string) (string, bool) {
	if m := explicitDistrictRe.FindStringSubmatch(address); m != nil {
		return titleCase(m[1]), true
	}
	for _, p := range districtPatterns {
		if p.re.MatchString(address) {
			return p.district, true
		}
	}
	return "", false
}

// StreetParts extracts street type, street name and house number
func StreetParts(address string) (streetType, name, number string, ok bool) {
	m := streetRe.FindStringSubmatch(address)
	if m == nil {
		return "", "", "", false
	}
	streetType = m[1]
	if strings.Contains(m[2], ".") {
		streetType += "."
	}
	return streetType, strings.TrimSpace(m[3]), m[4], true
}

// regionalPrefix is the qualifier prepended to every candidate for address
func regionalPrefix(address string) string {
	if district, ok := DetectDistrict(address); ok {
		return regionName + ", " + district + " район"
	}
	if cityMentionRe.MatchString(address) {
		return ""
	}
	return cityName
}

func withPrefix(prefix, s string) string {
	if prefix == "" {
		return s
	}
	return prefix + ", " + s
}

// BuildCandidates returns the ordered, deduplicated queries tried for
// address: the regionally qualified address, the bare address, and finally
// the street-only simplification.
func BuildCandidates(address string) []string {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	prefix := regionalPrefix(address)
	candidates := []string{withPrefix(prefix, address), address}

	if streetType, name, number, ok := StreetParts(address); ok {
		candidates = append(candidates, withPrefix(prefix, streetType+" "+name+" "+number))
	}

	return dedupe(candidates)
}

// StreetNameQuery is the last-resort query: the street without a house number
func StreetNameQuery(address string) (string, bool) {
	streetType, name, _, ok := StreetParts(address)
	if !ok {
		return "", false
	}
	return withPrefix(regionalPrefix(address), streetType+" "+name), true
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
