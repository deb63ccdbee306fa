package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestCustomOutputForApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{ApplicationLogOutput: &buf})
	msg := "Hello, world!"
	log.Info(msg)
	if !strings.Contains(buf.String(), msg) {
		t.Error("failed to use custom output")
	}
}

func TestCustomPrefixForApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		ApplicationLogOutput: &buf,
		ApplicationLogPrefix: "[TEST]"})
	log.Info("Hello, world!")
	got := buf.String()
	if !strings.HasPrefix(got, "[TEST]") || !strings.Contains(got, "Hello, world!") {
		t.Error("failed to use custom prefix")
	}
}

func TestJSONAccessLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{AccessLogOutput: &buf, AccessLogJSONEnabled: true})
	LogAccess(&AccessEntry{StatusCode: http.StatusTeapot})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON access log entry: %v", err)
	}

	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("unexpected status: %v", entry["status"])
	}
}
