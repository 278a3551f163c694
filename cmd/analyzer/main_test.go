package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/config"
	"github.com/cnath12/vpc-flow-log-analyzer/internal/parser"
)

const flowLog = `2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 443 49153 6 25 20000 1620140761 1620140821 ACCEPT OK
2 123456789012 eni-4d3c2b1a 192.168.1.100 203.0.113.101 23 49154 6 15 12000 1620140761 1620140821 REJECT OK
2 123456789012 eni-5e6f7g8h 192.168.1.101 198.51.100.3 25 443 6 10 8000 1620140761 1620140821 ACCEPT OK
2 123456789012 eni-9h8g7f6e 172.16.0.100 203.0.113.102 110 9999 1 12 9000 1620140761 1620140821 ACCEPT OK
2 123456789012 eni-7i8j9k0l 172.16.0.101 192.0.2.203 993 49157 6 8 5000 1620140761 1620140821 ACCEPT OK
3 123456789012 eni-1a2b3c4d 10.0.1.102 172.217.7.228 1030 443 6 8 4000 1620140661 1620140721 ACCEPT OK
2 123456789012 eni-0a1b2c3d short
`

const lookupCSV = `dstport,protocol,tag
443,tcp,sv_P2
0,icmp,PING
49153,TCP,sv_P1
`

func writeInputs(t *testing.T) (dir, logFile, lookupFile string) {
	t.Helper()
	dir = t.TempDir()
	logFile = filepath.Join(dir, "flow.log")
	lookupFile = filepath.Join(dir, "lookup.csv")
	os.WriteFile(logFile, []byte(flowLog), 0644)
	os.WriteFile(lookupFile, []byte(lookupCSV), 0644)
	return dir, logFile, lookupFile
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	if cmd == nil {
		t.Fatal("newRootCmd returned nil")
	}
	if !strings.HasPrefix(cmd.Use, "flow-log-analyzer") {
		t.Errorf("Expected use to start with 'flow-log-analyzer', got '%s'", cmd.Use)
	}
}

func TestSetupLogger(t *testing.T) {
	levels := []string{"DEBUG", "INFO", "WARN", "ERROR", "UNKNOWN"}
	for _, lvl := range levels {
		l := setupLogger(lvl, "")
		if l == nil {
			t.Errorf("setupLogger returned nil for level %s", lvl)
		}
	}

	logFile := filepath.Join(t.TempDir(), "test.log")
	if l := setupLogger("INFO", logFile); l == nil {
		t.Error("setupLogger with file returned nil")
	}

	if l := setupLogger("INFO", "/nonexistent/path/to/log.log"); l == nil {
		t.Error("setupLogger should return a logger even if file fails")
	}
}

func TestLoadLookupTable(t *testing.T) {
	_, err := loadLookupTable(config.LookupConfig{Provider: "unknown"}, "")
	if err == nil {
		t.Error("Expected error for unknown provider")
	}

	_, err = loadLookupTable(config.LookupConfig{Provider: config.ProviderCSV}, "")
	if err == nil {
		t.Error("Expected error for missing lookup path")
	}

	_, err = loadLookupTable(config.LookupConfig{Provider: config.ProviderCSV}, "/nonexistent/lookup.csv")
	if !errors.Is(err, parser.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}

	_, err = loadLookupTable(config.LookupConfig{Provider: config.ProviderMariaDB}, "")
	if err == nil {
		t.Error("Expected error for missing mariadb DSN")
	}

	_, err = loadLookupTable(config.LookupConfig{Provider: config.ProviderMariaDB, DSN: "invalid-dsn"}, "")
	if err == nil {
		t.Error("Expected error for invalid mariadb DSN")
	}
}

func TestRun(t *testing.T) {
	dir, logFile, lookupFile := writeInputs(t)
	tagOut := filepath.Join(dir, "tags.csv")
	comboOut := filepath.Join(dir, "combos.csv")

	cmd := newRootCmd()
	cmd.SetArgs([]string{logFile, lookupFile, tagOut, comboOut, "--log-level", "DEBUG"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	tags, err := os.ReadFile(tagOut)
	if err != nil {
		t.Fatalf("Tag output was not created: %v", err)
	}
	wantTags := "Tag,Count\nPING,1\nUntagged,2\nsv_P1,1\nsv_P2,1\n"
	if string(tags) != wantTags {
		t.Errorf("Expected tag output:\n%s\ngot:\n%s", wantTags, tags)
	}

	combos, err := os.ReadFile(comboOut)
	if err != nil {
		t.Fatalf("Combo output was not created: %v", err)
	}
	wantCombos := "Port,Protocol,Count\n0,icmp,1\n443,tcp,1\n49153,tcp,1\n"
	if string(combos) != wantCombos {
		t.Errorf("Expected combo output:\n%s\ngot:\n%s", wantCombos, combos)
	}

	// Parallel scan produces the same reports
	parTags := filepath.Join(dir, "tags_par.csv")
	parCombos := filepath.Join(dir, "combos_par.csv")
	cmdPar := newRootCmd()
	cmdPar.SetArgs([]string{logFile, lookupFile, parTags, parCombos, "--workers", "3"})
	if err := cmdPar.Execute(); err != nil {
		t.Fatalf("Parallel Execute failed: %v", err)
	}
	if got, _ := os.ReadFile(parTags); string(got) != wantTags {
		t.Errorf("Parallel tag output differs:\n%s", got)
	}
	if got, _ := os.ReadFile(parCombos); string(got) != wantCombos {
		t.Errorf("Parallel combo output differs:\n%s", got)
	}
}

func TestRunWithConfigFile(t *testing.T) {
	dir, _, lookupFile := writeInputs(t)
	malformed := filepath.Join(dir, "malformed.log")
	os.WriteFile(malformed, []byte(flowLog+"2 123456789012 eni-1 - - - - - - - 1620140761 1620140821 - NODATA\n"), 0644)
	cfgFile := filepath.Join(dir, "analyzer.yaml")
	os.WriteFile(cfgFile, []byte("logging:\n  level: WARN\naggregation:\n  workers: 2\n  skip_malformed: true\n"), 0644)

	cmd := newRootCmd()
	cmd.SetArgs([]string{malformed, lookupFile, filepath.Join(dir, "t.csv"), filepath.Join(dir, "c.csv"), "--config", cfgFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Expected malformed record to be skipped via config, got %v", err)
	}

	// An explicit flag overrides the config file.
	cmd = newRootCmd()
	cmd.SetArgs([]string{malformed, lookupFile, filepath.Join(dir, "t2.csv"), filepath.Join(dir, "c2.csv"), "--config", cfgFile, "--skip-malformed=false"})
	if err := cmd.Execute(); !errors.Is(err, parser.ErrMalformedRecord) {
		t.Fatalf("Expected ErrMalformedRecord when flag overrides config, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "t2.csv")); !os.IsNotExist(err) {
		t.Error("Tag output must not be written when aggregation fails")
	}
}

func TestRunErrors(t *testing.T) {
	dir, logFile, lookupFile := writeInputs(t)
	tagOut := filepath.Join(dir, "tags.csv")
	comboOut := filepath.Join(dir, "combos.csv")

	// Wrong number of positional arguments
	cmd := newRootCmd()
	cmd.SetArgs([]string{logFile, lookupFile, tagOut})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for missing positional argument")
	}

	// Missing log file
	cmd = newRootCmd()
	cmd.SetArgs([]string{filepath.Join(dir, "nonexistent.log"), lookupFile, tagOut, comboOut})
	if err := cmd.Execute(); !errors.Is(err, parser.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound for missing log file, got %v", err)
	}

	// Lookup file missing a column
	badLookup := filepath.Join(dir, "bad_lookup.csv")
	os.WriteFile(badLookup, []byte("dstport,protocol\n443,tcp\n"), 0644)
	cmd = newRootCmd()
	cmd.SetArgs([]string{logFile, badLookup, tagOut, comboOut})
	if err := cmd.Execute(); !errors.Is(err, parser.ErrSchema) {
		t.Errorf("Expected ErrSchema, got %v", err)
	}

	// Invalid provider
	cmd = newRootCmd()
	cmd.SetArgs([]string{logFile, lookupFile, tagOut, comboOut, "--provider", "invalid"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for invalid provider")
	}

	// Missing config file
	cmd = newRootCmd()
	cmd.SetArgs([]string{logFile, lookupFile, tagOut, comboOut, "--config", filepath.Join(dir, "missing.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for missing config file")
	}

	if _, err := os.Stat(tagOut); !os.IsNotExist(err) {
		t.Error("No output should be written by failing runs")
	}
}
