package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"MissingTitle", ErrMissingTitle, "Content_MissingTitle"},
		{"Format", ErrFormat, "Content_Format"},
		{"SemaphoreTimeout", ErrSemaphoreTimeout, "Resource_SemaphoreTimeout"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"BareTransport", ErrTransport, "Transport_Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_WrappedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "WrappedMissingTitle",
			err:      fmt.Errorf("extracting https://example.com/title/1: %w", ErrMissingTitle),
			expected: "Content_MissingTitle",
		},
		{
			name:     "TransportWrappingRetryFailedServer",
			err:      fmt.Errorf("%w: %w", ErrTransport, fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError))),
			expected: "RetryFailed_HTTPServer",
		},
		{
			name:     "TransportWrappingClient404",
			err:      fmt.Errorf("%w: %w", ErrTransport, fmt.Errorf("%w: status 404 Not Found", ErrClientHTTPError)),
			expected: "HTTP_404",
		},
		{
			name:     "TransportWrappingCanceled",
			err:      fmt.Errorf("%w: %w", ErrTransport, context.Canceled),
			expected: "System_ContextCanceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"URL", fmt.Errorf("%w: invalid URL 'x'", ErrParsing), "Content_ParsingURL"},
		{"HTML", fmt.Errorf("%w: parsing HTML body", ErrParsing), "Content_ParsingHTML"},
		{"Other", fmt.Errorf("%w: something", ErrParsing), "Content_ParsingOther"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCategorizeError_NetworkStrings(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Timeout", errors.New("connection timeout occurred"), "Network_TimeoutGeneric"},
		{"ConnectionRefused", errors.New("connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"TLS", errors.New("tls handshake failed"), "Network_TLS"},
		{"ConnectionReset", errors.New("reset by peer"), "Network_ConnectionReset"},
		{"BrokenPipe", errors.New("broken pipe"), "Network_BrokenPipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_Unknown(t *testing.T) {
	err := errors.New("some completely unknown error")
	result := CategorizeError(err)
	if result != "Unknown" {
		t.Errorf("CategorizeError(%v) = %q, want %q", err, result, "Unknown")
	}
}

func TestMissingTitleIsFormatNotTransport(t *testing.T) {
	if !errors.Is(ErrMissingTitle, ErrFormat) {
		t.Error("ErrMissingTitle should wrap ErrFormat")
	}
	if IsTransport(ErrMissingTitle) {
		t.Error("ErrMissingTitle must not be classified as a transport error")
	}
	if !IsTransport(fmt.Errorf("%w: dial tcp", ErrTransport)) {
		t.Error("wrapped ErrTransport should be classified as transport")
	}
}

// --- StateDirName Tests ---

func TestStateDirName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "www.imdb.com", "www.imdb.com"},
		{"Port", "127.0.0.1:8080", "127.0.0.1_8080"},
		{"Uppercase", "Films.Test", "films.test"},
		{"Collapses", "a//:b", "a_b"},
		{"Trimmed", ":films:", "films"},
		{"Empty", "", "site"},
		{"OnlyUnsafe", "<>:", "site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StateDirName(tt.input); got != tt.expected {
				t.Errorf("StateDirName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// --- SHA256 Tests ---

const helloWorldSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestSHA256Hex(t *testing.T) {
	if got := SHA256Hex([]byte("hello world")); got != helloWorldSHA256 {
		t.Errorf("SHA256Hex() = %q, want %q", got, helloWorldSHA256)
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "films.jsonl")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256() unexpected error: %v", err)
	}
	if got != helloWorldSHA256 {
		t.Errorf("FileSHA256() = %q, want %q", got, helloWorldSHA256)
	}

	if _, err := FileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("FileSHA256() on a missing file should fail")
	}
}
