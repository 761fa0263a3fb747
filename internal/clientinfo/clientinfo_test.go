package clientinfo

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/trustsafety/internal/geoip"
)

func TestResolveDevice(t *testing.T) {
	tests := []struct {
		name   string
		ua     string
		device string
		bot    bool
	}{
		{"windows chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36", "desktop", false},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15", "mobile", false},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15", "tablet", false},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "desktop", true},
		{"empty", "", "other", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Resolve(nil, tc.ua, "")
			assert.Equal(t, tc.device, c.DeviceType)
			assert.Equal(t, tc.bot, c.IsBot)
			assert.Empty(t, c.Country)
		})
	}
}

func TestFromRequestUsesGeoIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"net":"203.0.113.0/24","country":"NZ"}]`), 0o600))
	g, err := geoip.Open(path)
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/v1/reports", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "NZ", FromRequest(g, r).Country)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "198.51.100.4:5555"
	assert.Equal(t, "198.51.100.4", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.5")
	assert.Equal(t, "198.51.100.5", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 198.51.100.6 ,10.0.0.1")
	assert.Equal(t, "198.51.100.6", ClientIP(r))
}
