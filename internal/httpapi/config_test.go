package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate_FillsDefaults(test *testing.T) {
	cfg := Config{AdminSigningKey: "secret"}
	require.NoError(test, cfg.Validate())
	assert.Equal(test, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(test, defaultAdminIssuer, cfg.AdminIssuer)
	assert.Equal(test, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(test, []string{defaultAllowedOrigin}, cfg.AllowedOrigins)
}

func TestConfigValidate_RequiresSigningKey(test *testing.T) {
	cfg := Config{}
	require.Error(test, cfg.Validate())
}

func TestParseList(test *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "empty", raw: "  ", expected: []string{}},
		{name: "trims and drops blanks", raw: " a, ,b ,", expected: []string{"a", "b"}},
	}
	for _, testCase := range testCases {
		test.Run(testCase.name, func(test *testing.T) {
			assert.Equal(test, testCase.expected, ParseList(testCase.raw))
		})
	}
	assert.Equal(test, []string{"http://a", "http://b"}, ParseAllowedOrigins("http://a,http://b"))
}
