package forestz

import "testing"

func TestTagForLevel(t *testing.T) {
	tests := []struct {
		level   Level
		label   string
		display string
	}{
		{LevelTrace, "trace", "📍 [trace]"},
		{LevelDebug, "debug", "🐛 [debug]"},
		{LevelInfo, "info", "💬 [info]"},
		{LevelWarn, "warn", "🚧 [warn]"},
		{LevelError, "error", "🚨 [error]"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			tag := TagForLevel(tt.level)
			if tag.Label() != tt.label {
				t.Errorf("Expected label %q, got %q", tt.label, tag.Label())
			}
			if tag.Prefix() != "" {
				t.Errorf("Expected no prefix, got %q", tag.Prefix())
			}
			if tag.Display() != tt.display {
				t.Errorf("Expected display %q, got %q", tt.display, tag.Display())
			}
		})
	}
}

func TestNewTag(t *testing.T) {
	tag := NewTag("security", "critical", '🔐')

	if tag.String() != "security.critical" {
		t.Errorf("Expected 'security.critical', got %q", tag.String())
	}
	if tag.Icon() != '🔐' {
		t.Errorf("Expected 🔐, got %c", tag.Icon())
	}
	if tag != NewTag("security", "critical", '🔐') {
		t.Error("Expected tags with equal parts to compare equal")
	}
}

func TestResolveTagCategory(t *testing.T) {
	tag := ResolveTag(LevelWarn, "db")
	if tag.String() != "db.warn" {
		t.Errorf("Expected 'db.warn', got %q", tag.String())
	}
	if tag.Icon() != WarnIcon {
		t.Errorf("Expected warn icon, got %c", tag.Icon())
	}
	if ResolveTag(LevelInfo, "") != TagForLevel(LevelInfo) {
		t.Error("Expected empty category to resolve to the level tag")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", LevelDebug},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
	if Level(42).String() != "LEVEL(42)" {
		t.Errorf("Expected LEVEL(42), got %s", Level(42))
	}
}
