package server

import (
	"strings"
	"testing"
)

var validatedVars = []string{
	"FD_ADDR", "FD_MAX_UPLOAD_BYTES", "FD_READ_TIMEOUT", "FD_SWEEP_INTERVAL", "FD_SWEEP_MAX_AGE",
	"FD_UPLOAD_RATE", "FD_STORE_MODE", "FD_UPLOAD_DIR", "FD_CATALOG", "DATABASE_URL",
	"FD_S3_ENDPOINT", "FD_S3_ACCESS_KEY", "FD_S3_SECRET_KEY", "FD_BUCKET",
	"FD_LOG_FORMAT", "FD_LOG_LEVEL", "FD_ENV",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range validatedVars {
		t.Setenv(k, "")
	}
}

func TestValidateAllConfiguration_Defaults(t *testing.T) {
	clearConfigEnv(t)

	if err := ValidateAllConfiguration(); err != nil {
		t.Fatalf("empty environment should be valid: %v", err)
	}
}

func TestValidateAllConfiguration_Valid(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("FD_ADDR", "127.0.0.1:7000")
	t.Setenv("FD_MAX_UPLOAD_BYTES", "64MiB")
	t.Setenv("FD_READ_TIMEOUT", "90s")
	t.Setenv("FD_UPLOAD_RATE", "30")
	t.Setenv("FD_STORE_MODE", "raw")
	t.Setenv("FD_CATALOG", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/filedrop?sslmode=disable")
	t.Setenv("FD_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("FD_S3_ACCESS_KEY", "minio")
	t.Setenv("FD_S3_SECRET_KEY", "minio123")
	t.Setenv("FD_BUCKET", "uploads")
	t.Setenv("FD_LOG_FORMAT", "json")

	if err := ValidateAllConfiguration(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAllConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"bad addr", map[string]string{"FD_ADDR": "7000"}, "FD_ADDR"},
		{"port out of range", map[string]string{"FD_ADDR": ":70000"}, "FD_ADDR"},
		{"bad size", map[string]string{"FD_MAX_UPLOAD_BYTES": "lots"}, "FD_MAX_UPLOAD_BYTES"},
		{"bad timeout", map[string]string{"FD_READ_TIMEOUT": "2 minutes"}, "FD_READ_TIMEOUT"},
		{"negative rate", map[string]string{"FD_UPLOAD_RATE": "-1"}, "FD_UPLOAD_RATE"},
		{"bad store mode", map[string]string{"FD_STORE_MODE": "envelope"}, "FD_STORE_MODE"},
		{"bad catalog", map[string]string{"FD_CATALOG": "mysql"}, "FD_CATALOG"},
		{"postgres without url", map[string]string{"FD_CATALOG": "postgres"}, "DATABASE_URL"},
		{"postgres bad url", map[string]string{"FD_CATALOG": "postgres", "DATABASE_URL": "mysql://x"}, "DATABASE_URL"},
		{"partial mirror", map[string]string{"FD_S3_ENDPOINT": "localhost:9000"}, "FD_S3_*"},
		{"bad mirror scheme", map[string]string{
			"FD_S3_ENDPOINT": "ftp://host", "FD_S3_ACCESS_KEY": "a", "FD_S3_SECRET_KEY": "b", "FD_BUCKET": "c",
		}, "FD_S3_ENDPOINT"},
		{"bad log level", map[string]string{"FD_LOG_LEVEL": "verbose"}, "FD_LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := ValidateAllConfiguration()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error does not mention %s: %v", tt.field, err)
			}
		})
	}
}

func TestConfigValidator_CollectsAllErrors(t *testing.T) {
	v := NewConfigValidator()
	v.ValidateListenAddr("A", "nope")
	v.ValidateDuration("B", "x")
	v.ValidateByteSize("C", "1MiB")

	if len(v.Errors()) != 2 {
		t.Fatalf("errors = %v", v.Errors())
	}
	msg := v.ErrorString()
	if !strings.Contains(msg, "2 error(s)") || !strings.Contains(msg, "1. ") || !strings.Contains(msg, "2. ") {
		t.Errorf("ErrorString = %q", msg)
	}
}
