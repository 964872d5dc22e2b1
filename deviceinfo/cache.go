// Package deviceinfo caches and parses the FC41 device-identification
// block for each battery.
package deviceinfo

import (
	"strings"
	"sync"
	"time"
)

// Info is one battery's parsed identification block.
type Info struct {
	Manufacturer     string
	Model            string
	Barcode          string
	ManufacturedDate string
	Description      string
	InfoVersion      string
	ElabelVersion    string
	CombinedText     string
	IsHuawei         bool
	ParsedAt         time.Time
}

// fieldPatterns lists, per field, the accepted prefixes in priority order.
var fieldPatterns = []struct {
	field    string
	prefixes []string
}{
	{"manufacturer", []string{"VendorName="}},
	{"model", []string{"BoardType=", "Model="}},
	{"barcode", []string{"BarCode="}},
	{"manufactured_date", []string{"Manufactured="}},
	{"description", []string{"Description="}},
	{"info_version", []string{"ArchivesInfoVersion="}},
	{"elabel_version", []string{"ElabelVersion=", "/$ElabelVersion="}},
}

// Parse extracts an Info from the concatenated ASCII payload returned by
// the FC41 device-info reads.
func Parse(combinedText string) Info {
	info := Info{CombinedText: combinedText, ParsedAt: time.Now()}
	values := make(map[string]string, len(fieldPatterns))

	for _, fp := range fieldPatterns {
		for _, prefix := range fp.prefixes {
			pos := strings.Index(combinedText, prefix)
			if pos == -1 {
				continue
			}
			start := pos + len(prefix)
			value := extractUntilLineEnd(combinedText, start)
			value = cleanPrintable(value)
			if value != "" {
				values[fp.field] = value
				break
			}
		}
	}

	info.Manufacturer = values["manufacturer"]
	info.Model = values["model"]
	info.Barcode = values["barcode"]
	info.ManufacturedDate = normalizeManufactureDate(values["manufactured_date"])
	info.Description = values["description"]
	info.InfoVersion = values["info_version"]
	info.ElabelVersion = values["elabel_version"]
	info.IsHuawei = isHuaweiCompatible(info.Manufacturer, info.Model)
	return info
}

func extractUntilLineEnd(s string, start int) string {
	if start >= len(s) {
		return ""
	}
	rest := s[start:]
	end := strings.IndexAny(rest, "\n\r")
	if end == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// cleanPrintable drops any byte outside the printable ASCII range [32,126],
// matching the source's character filter.
func cleanPrintable(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isHuaweiCompatible(manufacturer, model string) bool {
	m := strings.ToLower(manufacturer)
	d := strings.ToLower(model)
	return strings.Contains(m, "huawei") || strings.HasPrefix(d, "esm")
}

// normalizeManufactureDate applies the date-normalization rules: a 2-digit
// year expands to 20YY; a 4-digit year and a full YYYY-MM-DD pass through
// unchanged; YY-MM-DD expands its year to 20YY; anything else is returned
// unchanged.
func normalizeManufactureDate(date string) string {
	if date == "" {
		return ""
	}
	if isAllDigits(date) && len(date) == 2 {
		return "20" + date
	}
	if isAllDigits(date) && len(date) == 4 {
		return date
	}
	if len(date) == 10 && date[4] == '-' && date[7] == '-' {
		return date
	}
	if len(date) == 8 && date[2] == '-' && date[5] == '-' {
		return "20" + date
	}
	return date
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Cache is a thread-safe, per-battery store of the most recently parsed
// Info, replacing the source's module-level dict.
type Cache struct {
	mu      sync.RWMutex
	entries map[byte]Info
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[byte]Info)}
}

// Update parses combinedText and stores the result for id, overwriting any
// previous entry.
func (c *Cache) Update(id byte, combinedText string) Info {
	info := Parse(combinedText)
	c.mu.Lock()
	c.entries[id] = info
	c.mu.Unlock()
	return info
}

// Get returns id's cached Info, or false if none is recorded.
func (c *Cache) Get(id byte) (Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.entries[id]
	return info, ok
}

// GetAll returns every cached entry keyed by battery id.
func (c *Cache) GetAll() map[byte]Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[byte]Info, len(c.entries))
	for id, info := range c.entries {
		out[id] = info
	}
	return out
}

// Reset removes id's cached entry.
func (c *Cache) Reset(id byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// ResetAll clears every cached entry.
func (c *Cache) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[byte]Info)
}
