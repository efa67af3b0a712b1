package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		name         string
		info         string
		major, minor int
		ok           bool
	}{
		{"modern", "# Server\r\nredis_version:7.2.4\r\nredis_mode:standalone\r\n", 7, 2, true},
		{"old", "# Server\r\nredis_version:6.0.16\r\n", 6, 0, true},
		{"missing", "# Server\r\nredis_mode:standalone\r\n", 0, 0, false},
		{"garbage", "redis_version:seven\r\n", 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			major, minor, ok := parseServerVersion(tc.info)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.major, major)
			assert.Equal(t, tc.minor, minor)
		})
	}
}
