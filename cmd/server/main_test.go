package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLanguagesCommand(t *testing.T) {
	out, err := runRoot(t, "", "languages")
	if err != nil {
		t.Fatalf("languages failed: %v", err)
	}

	for _, want := range []string{"/portuguese", "pt-PT-Wavenet-C", "/polish", "pl-PL-Wavenet-B", "/italian"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestSayDryRun(t *testing.T) {
	out, err := runRoot(t, "", "say", "--dry-run", "--max-chunk-length", "4", "A.", "B.", "C.")
	if err != nil {
		t.Fatalf("say --dry-run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 chunks, got %q", lines)
	}
	if lines[0] != "1\t2\tA." || lines[2] != "3\t2\tC." {
		t.Errorf("Unexpected chunk lines %q", lines)
	}
}

func TestSayDryRunFromStdin(t *testing.T) {
	out, err := runRoot(t, "One. Two.", "say", "--dry-run")
	if err != nil {
		t.Fatalf("say --dry-run failed: %v", err)
	}
	if strings.TrimSpace(out) != "1\t9\tOne. Two." {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestSayUnknownLanguage(t *testing.T) {
	if _, err := runRoot(t, "", "say", "--dry-run", "--language", "klingon", "Hello."); err == nil {
		t.Error("Expected error for unknown language")
	}
}

func TestSayWritesAudio(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		var body struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("<" + body.Input.Text + ">")),
		})
	}))
	defer server.Close()

	t.Setenv("TS_API_KEY", "test-key")
	t.Setenv("TTS_ENDPOINT", server.URL)
	t.Setenv("LOG_LEVEL", "error")

	outFile := filepath.Join(t.TempDir(), "out.ogg")
	if _, err := runRoot(t, "", "say", "--language", "polish", "--max-chunk-length", "4", "--out", outFile, "A. B."); err != nil {
		t.Fatalf("say failed: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if string(data) != "<A.><B.>" {
		t.Errorf("Expected concatenated audio, got %q", data)
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("Expected 2 synthesis requests, got %d", n)
	}
}

func TestSayRequiresAPIKey(t *testing.T) {
	t.Setenv("TS_API_KEY", "")
	os.Unsetenv("TS_API_KEY")

	if _, err := runRoot(t, "", "say", "--out", filepath.Join(t.TempDir(), "x.ogg"), "Hello."); err == nil {
		t.Error("Expected error without TS_API_KEY")
	}
}
