package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.DownloadDir != filepath.Join(os.TempDir(), DEFAULT_DOWNLOAD_DIR) {
		t.Errorf("unexpected download dir %s", config.DownloadDir)
	}
	if config.MirrorTimeout != DEFAULT_MIRROR_TIMEOUT {
		t.Errorf("expected mirror timeout %s, got %s", DEFAULT_MIRROR_TIMEOUT, config.MirrorTimeout)
	}
	if config.TerminateWait != DEFAULT_TERMINATE_WAIT {
		t.Errorf("expected terminate wait %s, got %s", DEFAULT_TERMINATE_WAIT, config.TerminateWait)
	}
	if config.ProcessControl != PROCESS_CONTROL_AUTO {
		t.Errorf("expected process control auto, got %s", config.ProcessControl)
	}
	for _, id := range []string{"dsr", "structurefinder", "finalcif", "test"} {
		p, ok := config.Programs[id]
		if !ok {
			t.Errorf("expected built-in program %s", id)
			continue
		}
		if p.ID != id || len(p.Mirrors) != 3 {
			t.Errorf("unexpected program %s: %+v", id, p)
		}
	}
}

func TestLoadConfig_MergesFile(t *testing.T) {
	configPath := writeConfig(t, `
download_dir: /var/tmp/setups
mirror_timeout: 30s
terminate_wait: 2s
process_control: Always
user_agent: lab-updater
s3_endpoint: http://localhost:9000
programs:
  finalcif:
    version_range: '>=2.0.0'
    mirrors:
      - s3://installers/finalcif/FinalCif-setup-x64-v{version}.exe
  shelxle:
    mirrors:
      - https://example.org/shelxle/ShelXle-{version}.exe
`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.DownloadDir != "/var/tmp/setups" {
		t.Errorf("expected download dir /var/tmp/setups, got %s", config.DownloadDir)
	}
	if config.MirrorTimeout != 30*time.Second {
		t.Errorf("expected mirror timeout 30s, got %s", config.MirrorTimeout)
	}
	if config.TerminateWait != 2*time.Second {
		t.Errorf("expected terminate wait 2s, got %s", config.TerminateWait)
	}
	if config.ProcessControl != PROCESS_CONTROL_ALWAYS {
		t.Errorf("expected process control always, got %s", config.ProcessControl)
	}
	if config.UserAgent != "lab-updater" || config.S3Endpoint != "http://localhost:9000" {
		t.Errorf("unexpected transport settings %q %q", config.UserAgent, config.S3Endpoint)
	}

	finalcif := config.Programs["finalcif"]
	if len(finalcif.Mirrors) != 1 || !strings.HasPrefix(finalcif.Mirrors[0], "s3://") {
		t.Errorf("expected finalcif mirrors to be replaced, got %v", finalcif.Mirrors)
	}
	if finalcif.VersionRange != ">=2.0.0" {
		t.Errorf("expected version range >=2.0.0, got %q", finalcif.VersionRange)
	}
	if _, ok := config.Programs["shelxle"]; !ok {
		t.Error("expected shelxle to be added")
	}
	if len(config.Programs["dsr"].Mirrors) != 3 {
		t.Error("expected built-in dsr mirrors to be kept")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{
			name: "template without placeholder",
			config: `
programs:
  finalcif:
    mirrors:
      - https://example.org/FinalCif-setup.exe
`,
		},
		{
			name: "template with two placeholders",
			config: `
programs:
  finalcif:
    mirrors:
      - https://example.org/{version}/FinalCif-{version}.exe
`,
		},
		{
			name: "program without mirrors",
			config: `
programs:
  finalcif:
    mirrors: []
`,
		},
		{
			name: "invalid version range",
			config: `
programs:
  finalcif:
    version_range: 'newer than 2'
    mirrors:
      - https://example.org/FinalCif-{version}.exe
`,
		},
		{
			name:   "unknown process control",
			config: "process_control: sometimes\n",
		},
		{
			name:   "negative timeout",
			config: "mirror_timeout: -5s\n",
		},
		{
			name:   "malformed yaml",
			config: "programs: [unclosed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.config))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRunExitCodes(t *testing.T) {
	origSugar := sugar
	t.Cleanup(func() { sugar = origSugar })

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	downloadDir := t.TempDir()

	tests := []struct {
		name         string
		args         []string
		exitCode     int
		stdoutSubstr string
		stderrSubstr string
	}{
		{
			name:         "no arguments",
			args:         nil,
			exitCode:     EXIT_NO_ARGUMENTS,
			stderrSubstr: "Program updater",
		},
		{
			name:         "help",
			args:         []string{"-h"},
			exitCode:     EXIT_OK,
			stderrSubstr: "Program updater",
		},
		{
			name:     "program escaping the download dir",
			args:     []string{"-p", "../victim", "-v", "1", "-url", server.URL + "/x-{version}.exe", "-download-dir", downloadDir},
			exitCode: EXIT_NO_ARGUMENTS,
		},
		{
			name:         "missing version",
			args:         []string{"-p", "finalcif"},
			exitCode:     EXIT_NO_ARGUMENTS,
			stderrSubstr: "Invalid command line options.",
		},
		{
			name:     "unknown flag",
			args:     []string{"-p", "finalcif", "-v", "2.1", "-force"},
			exitCode: EXIT_NO_ARGUMENTS,
		},
		{
			name:     "invalid logger type",
			args:     []string{"-p", "finalcif", "-v", "2.1", "-logger-type", "verbose"},
			exitCode: EXIT_NO_ARGUMENTS,
		},
		{
			name:         "unknown program",
			args:         []string{"-p", "notepad", "-v", "1.0", "-logger-type", "production"},
			exitCode:     EXIT_UNKNOWN_PROGRAM,
			stdoutSubstr: "Unknown program. Aborting update!",
		},
		{
			name:     "url without placeholder",
			args:     []string{"-p", "finalcif", "-v", "2.1", "-url", server.URL + "/FinalCif.exe"},
			exitCode: EXIT_NO_ARGUMENTS,
		},
		{
			name:     "missing config file",
			args:     []string{"-p", "finalcif", "-v", "2.1", "-config-path", filepath.Join(downloadDir, "missing.yaml")},
			exitCode: EXIT_FAILURE,
		},
		{
			name: "no mirror has the installer",
			args: []string{
				"-p", "finalcif", "-v", "2.1",
				"-url", server.URL + "/FinalCif-setup-x64-v{version}.exe",
				"-download-dir", downloadDir,
				"-no-progress",
				"-logger-type", "production",
			},
			exitCode:     EXIT_UNREACHABLE,
			stdoutSubstr: "No update found. Giving up.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			if code != tt.exitCode {
				t.Fatalf("exit code = %d, want %d\nstdout: %s\nstderr: %s", code, tt.exitCode, stdout.String(), stderr.String())
			}
			if tt.stdoutSubstr != "" && !strings.Contains(stdout.String(), tt.stdoutSubstr) {
				t.Errorf("stdout %q does not contain %q", stdout.String(), tt.stdoutSubstr)
			}
			if tt.stderrSubstr != "" && !strings.Contains(stderr.String(), tt.stderrSubstr) {
				t.Errorf("stderr %q does not contain %q", stderr.String(), tt.stderrSubstr)
			}
		})
	}
}

func TestRunKeepsFilesOutsideDownloadDir(t *testing.T) {
	origSugar := sugar
	t.Cleanup(func() { sugar = origSugar })

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	root := t.TempDir()
	downloadDir := filepath.Join(root, "downloads")
	victim := filepath.Join(root, "victim-setup.exe")
	if err := os.WriteFile(victim, []byte("keep me"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-p", "../victim", "-v", "1",
		"-url", server.URL + "/x-{version}.exe",
		"-download-dir", downloadDir,
		"-no-progress",
	}, &stdout, &stderr)
	if code != EXIT_NO_ARGUMENTS {
		t.Errorf("exit code = %d, want %d", code, EXIT_NO_ARGUMENTS)
	}
	data, err := os.ReadFile(victim)
	if err != nil || string(data) != "keep me" {
		t.Errorf("file outside the download dir was touched: %q, %v", data, err)
	}
}
