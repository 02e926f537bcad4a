// internal/writer/builder_test.go
package writer

import (
	"testing"

	cfg "github.com/tamzrod/modbus-rtu-writer/internal/config"
)

func cfgWithTimeout(ms int) *cfg.Config {
	c := &cfg.Config{Serial: cfg.SerialConfig{TimeoutMs: ms}}
	cfg.Normalize(c)
	return c
}

func TestBuild_RequiresConfig(t *testing.T) {
	if _, err := Build(nil, nil); err == nil {
		t.Fatalf("expected error for nil config, got nil")
	}
}

func TestBuild_FactoryCreatesFreshSessions(t *testing.T) {
	d, err := Build(cfgWithTimeout(100), nil)
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}

	a := d.newSession("COM1")
	b := d.newSession("COM1")
	if a == b {
		t.Fatalf("expected one session per attempt")
	}
}
