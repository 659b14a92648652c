package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		value     string
		wantErr   bool
	}{
		{"https ok", HTTPSURL(), "https://example.com", false},
		{"https rejects http", HTTPSURL(), "http://example.com", true},
		{"https rejects no host", HTTPSURL(), "https://", true},
		{"redis scheme", URLWithSchemes("redis", "rediss"), "rediss://cache:6380/0", false},
		{"redis rejects http", URLWithSchemes("redis", "rediss"), "http://cache", true},
		{"duration ok", Duration(time.Second), "30s", false},
		{"duration below min", Duration(time.Second), "10ms", true},
		{"duration malformed", Duration(0), "soon", true},
		{"int in range", IntRange(1, 10), "10", false},
		{"int out of range", IntRange(1, 10), "11", true},
		{"int malformed", IntRange(1, 10), "ten", true},
		{"bool ok", Bool(), "TRUE", false},
		{"bool malformed", Bool(), "yes please", true},
		{"one of case-insensitive", OneOf("a", "b"), "B", false},
		{"one of rejects", OneOf("a", "b"), "c", true},
		{"prefix ok", Prefix("sk-"), "sk-abc", false},
		{"prefix rejects", Prefix("sk-"), "pk-abc", true},
		{"host port ok", HostPort(), ":9090", false},
		{"host port with host", HostPort(), "127.0.0.1:8080", false},
		{"host port no port", HostPort(), "localhost", true},
		{"host port bad port", HostPort(), "localhost:99999", true},
		{"jwt ok", JWT(), testAnonKey, false},
		{"jwt two segments", JWT(), "a.b", true},
		{"jwt empty segment", JWT(), "a..c", true},
		{"jwt header not json", JWT(), "bm90anNvbg.e30.sig", true},
		{"min length ok", MinLength(4), "abcd", false},
		{"min length short", MinLength(4), "abc", true},
		{"all passes", All(Prefix("sk-"), Prefix("sk-live")), "sk-live-1", false},
		{"all first failure", All(Prefix("sk-"), Prefix("sk-live")), "sk-test-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && len(tt.value) > 3 && strings.Contains(err.Error(), tt.value) {
				t.Errorf("Expected message to omit value, got %q", err.Error())
			}
		})
	}
}
