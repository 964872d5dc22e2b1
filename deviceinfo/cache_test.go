package deviceinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExtractsKnownFields(t *testing.T) {
	text := "VendorName=HUAWEI\nBoardType=ESM-48150B1\nBarCode=ABC123\nManufactured=20-01-15\n"
	info := Parse(text)

	assert.Equal(t, "HUAWEI", info.Manufacturer)
	assert.Equal(t, "ESM-48150B1", info.Model)
	assert.Equal(t, "ABC123", info.Barcode)
	assert.Equal(t, "2020-01-15", info.ManufacturedDate)
	assert.True(t, info.IsHuawei)
}

func TestParseFallsBackToAlternatePrefix(t *testing.T) {
	text := "Model=ESM-53100\n/$ElabelVersion=3.0\n"
	info := Parse(text)

	assert.Equal(t, "ESM-53100", info.Model)
	assert.Equal(t, "3.0", info.ElabelVersion)
	assert.True(t, info.IsHuawei)
}

func TestParseNonHuaweiIsFlaggedNotDiscarded(t *testing.T) {
	text := "VendorName=Acme\nBoardType=XYZ-1\n"
	info := Parse(text)

	assert.Equal(t, "Acme", info.Manufacturer)
	assert.False(t, info.IsHuawei)
}

func TestNormalizeManufactureDateRules(t *testing.T) {
	assert.Equal(t, "2020", normalizeManufactureDate("20"))
	assert.Equal(t, "2020", normalizeManufactureDate("2020"))
	assert.Equal(t, "2020-01-15", normalizeManufactureDate("2020-01-15"))
	assert.Equal(t, "2020-01-15", normalizeManufactureDate("20-01-15"))
	assert.Equal(t, "not-a-date", normalizeManufactureDate("not-a-date"))
}

func TestCacheUpdateAndGet(t *testing.T) {
	c := NewCache()
	c.Update(0xD9, "VendorName=HUAWEI\n")

	info, ok := c.Get(0xD9)
	assert.True(t, ok)
	assert.Equal(t, "HUAWEI", info.Manufacturer)

	_, ok = c.Get(0x01)
	assert.False(t, ok)
}
