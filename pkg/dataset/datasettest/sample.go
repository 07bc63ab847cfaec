package datasettest

import "github.com/dmitrymomot/devicedetect/pkg/dataset"

// User-Agents registered by Sample.
const (
	AndroidUA = "Mozilla/5.0 (Linux; Android 10; Pixel 4) AppleWebKit/537.36 Chrome/90.0 Mobile Safari/537.36"
	DesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/90.0 Safari/537.36"
	IPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 Version/14.0 Mobile Safari/604.1"
)

// Sample returns a builder for a two-component dataset: hardware with
// profiles 10 and 11, browser with profiles 20, 21 and 22. The Android
// signature resolves to device-id "10-21".
func Sample() *Builder {
	b := New().
		Name("sample").
		Headers("User-Agent", "Device-Stock-UA", "X-OperaMini-Phone-UA")

	hw := b.Component("HardwarePlatform")
	br := b.Component("BrowserUA")

	b.TypedProperty(hw, "IsMobile", dataset.TypeBool, true, false).
		Property(hw, "HardwareVendor", true).
		Property(hw, "HardwareModel", false).
		TypedProperty(hw, "ScreenPixelsWidth", dataset.TypeInt, false, false).
		Property(br, "BrowserName", true).
		Property(br, "BrowserVersion", false).
		TypedProperty(br, "Javascript", dataset.TypeBool, false, false).
		TypedProperty(br, "HtmlVersion", dataset.TypeFloat, false, true)

	b.Profile(hw, 10, map[string][]string{
		"IsMobile":          {"True"},
		"HardwareVendor":    {"Google"},
		"HardwareModel":     {"Pixel 4"},
		"ScreenPixelsWidth": {"1080"},
	})
	b.Profile(hw, 11, map[string][]string{
		"IsMobile":       {"False"},
		"HardwareVendor": {"Unknown"},
	})
	b.Profile(br, 20, map[string][]string{
		"BrowserName":    {"Chrome"},
		"BrowserVersion": {"90.0"},
		"Javascript":     {"True"},
		"HtmlVersion":    {"4.0", "5.0"},
	})
	b.Profile(br, 21, map[string][]string{
		"BrowserName":    {"Chrome Mobile"},
		"BrowserVersion": {"90.0"},
		"Javascript":     {"True"},
		"HtmlVersion":    {"5.0"},
	})
	b.Profile(br, 22, map[string][]string{
		"BrowserName":    {"Mobile Safari"},
		"BrowserVersion": {"14.0"},
	})

	b.Signature(AndroidUA, 1, 10, 21)
	b.Signature(DesktopUA, 2, 11, 20)
	b.Signature(IPhoneUA, 3, 10, 22)
	return b
}
