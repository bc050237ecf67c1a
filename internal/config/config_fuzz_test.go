package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// FuzzDashboardTOML feeds random-ish values into a small TOML and ensures the
// loader does not panic and Validate agrees with the decoded values.
func FuzzDashboardTOML(f *testing.F) {
	f.Add("http://localhost:5000/api", "10s", 100)
	f.Add("ftp://x", "0s", 0)
	f.Add("", "-5s", -1)

	f.Fuzz(func(t *testing.T, apiURL string, poll string, capacity int) {
		apiURL = strings.NewReplacer("\"", "", "\\", "", "\n", "").Replace(apiURL)
		poll = strings.NewReplacer("\"", "", "\\", "", "\n", "").Replace(poll)

		b := strings.Builder{}
		b.WriteString("[api]\nurl = \"" + apiURL + "\"\n")
		b.WriteString("[dashboard]\npoll_interval = \"" + poll + "\"\n")
		b.WriteString("log_capacity = ")
		b.WriteString(strconv.Itoa(capacity))
		b.WriteString("\n")

		file := filepath.Join(t.TempDir(), "f.toml")
		if err := os.WriteFile(file, []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		cfg, err := Load(file)
		if err != nil {
			return
		}
		err = cfg.Validate()
		if capacity <= 0 && err == nil {
			t.Fatalf("non-positive log_capacity %d passed validation", capacity)
		}
		if cfg.Dashboard.PollInterval <= 0 && err == nil {
			t.Fatalf("non-positive poll_interval %v passed validation", cfg.Dashboard.PollInterval)
		}
	})
}
