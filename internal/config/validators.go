package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Validator checks a resolved, non-empty value.
// Error messages must describe the expected shape and never echo the value.
type Validator func(value string) error

// HTTPSURL accepts absolute https URLs with a host
func HTTPSURL() Validator {
	return URLWithSchemes("https")
}

// URLWithSchemes accepts absolute URLs whose scheme is one of schemes
func URLWithSchemes(schemes ...string) Validator {
	return func(value string) error {
		u, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("not a valid URL")
		}
		if u.Host == "" {
			return fmt.Errorf("URL has no host")
		}
		for _, s := range schemes {
			if strings.EqualFold(u.Scheme, s) {
				return nil
			}
		}
		return fmt.Errorf("URL scheme must be one of %v", schemes)
	}
}

// Duration accepts time.ParseDuration strings of at least min
func Duration(min time.Duration) Validator {
	return func(value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration format")
		}
		if d < min {
			return fmt.Errorf("duration is below minimum of %s", min)
		}
		return nil
	}
}

// IntRange accepts base-10 integers in [min, max]
func IntRange(min, max int) Validator {
	return func(value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("not an integer")
		}
		if n < min || n > max {
			return fmt.Errorf("must be between %d and %d", min, max)
		}
		return nil
	}
}

// Bool accepts anything strconv.ParseBool does
func Bool() Validator {
	return func(value string) error {
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("not a boolean")
		}
		return nil
	}
}

// OneOf accepts one of the listed values, case-insensitively
func OneOf(values ...string) Validator {
	return func(value string) error {
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(value), v) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", values)
	}
}

// Prefix accepts values starting with p
func Prefix(p string) Validator {
	return func(value string) error {
		if !strings.HasPrefix(value, p) {
			return fmt.Errorf("must start with %q", p)
		}
		return nil
	}
}

// HostPort accepts listen addresses such as ":9090" or "0.0.0.0:9090"
func HostPort() Validator {
	return func(value string) error {
		i := strings.LastIndex(value, ":")
		if i < 0 {
			return fmt.Errorf("must be host:port")
		}
		port, err := strconv.Atoi(value[i+1:])
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port")
		}
		return nil
	}
}

// MinLength accepts values of at least n bytes
func MinLength(n int) Validator {
	return func(value string) error {
		if len(value) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}
		return nil
	}
}

// JWT accepts three dot-separated base64url segments whose header decodes
// to a JSON object. Signatures are not verified.
func JWT() Validator {
	return func(value string) error {
		parts := strings.Split(value, ".")
		if len(parts) != 3 {
			return fmt.Errorf("must be a JWT with three segments")
		}
		for _, p := range parts {
			if p == "" {
				return fmt.Errorf("JWT has an empty segment")
			}
		}
		header, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
		if err != nil {
			return fmt.Errorf("JWT header is not base64url")
		}
		if !strings.HasPrefix(strings.TrimSpace(string(header)), "{") {
			return fmt.Errorf("JWT header is not a JSON object")
		}
		return nil
	}
}

// All chains validators; the first failure wins
func All(validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}
