package command

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  CommandMsg
	}{
		{"refresh", CommandMsg{Action: ActionRefresh}},
		{"  R ", CommandMsg{Action: ActionRefresh}},
		{"n", CommandMsg{Action: ActionNotifications}},
		{"read 12", CommandMsg{Action: ActionRead, ID: 12}},
		{"logout", CommandMsg{Action: ActionLogout}},
		{"q", CommandMsg{Action: ActionQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, input := range []string{"", "fly", "read", "read x", "read 0", "refresh now"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded", input)
		}
	}
}

func TestCommandList(t *testing.T) {
	list := commandList()
	for _, want := range []string{"notifications", "read <id>", "settings", "quit"} {
		if !strings.Contains(list, want) {
			t.Errorf("command list %q missing %q", list, want)
		}
	}
	if strings.Contains(list, "  q  ") {
		t.Errorf("aliases should not be listed: %q", list)
	}
}
