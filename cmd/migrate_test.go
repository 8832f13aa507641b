package cmd

import (
	"testing"
)

func TestParseRollbackTarget(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantTag   string
		wantCount int
		wantErr   bool
	}{
		{"no argument", nil, "", 0, false},
		{"count", []string{"3"}, "", 3, false},
		{"tag", []string{"0002_add_users"}, "0002_add_users", 0, false},
		{"tag starting with digits", []string{"0002"}, "", 2, false},
		{"zero count", []string{"0"}, "", 0, true},
		{"negative count", []string{"-1"}, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := parseRollbackTarget(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRollbackTarget(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if target.Tag != tt.wantTag {
				t.Errorf("Tag = %q, want %q", target.Tag, tt.wantTag)
			}
			if target.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", target.Count, tt.wantCount)
			}
		})
	}
}

func TestRootCommandRegistrations(t *testing.T) {
	want := map[string]bool{
		"migrate": false,
		"serve":   false,
		"init":    false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestMigrateSubcommands(t *testing.T) {
	want := map[string]bool{
		"status":   false,
		"rollback": false,
		"init":     false,
	}
	for _, c := range migrateCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("migrate subcommand %q not registered", name)
		}
	}
}
