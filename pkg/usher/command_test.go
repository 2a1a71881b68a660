package usher

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommandCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		text          string
		wantMatched   bool
		wantErrSubstr string
		wantName      string
		wantMention   string
		wantArgs      []string
	}{
		{
			name:        "command with mention and args",
			text:        " /Invites@UsherBot 12345 ",
			wantMatched: true,
			wantName:    "invites",
			wantMention: "UsherBot",
			wantArgs:    []string{"12345"},
		},
		{
			name:        "command without args",
			text:        "/ping",
			wantMatched: true,
			wantName:    "ping",
		},
		{
			name:        "admin command with two args",
			text:        "/addinvites 12345 10",
			wantMatched: true,
			wantName:    "addinvites",
			wantArgs:    []string{"12345", "10"},
		},
		{
			name:        "non command text",
			text:        "hello there",
			wantMatched: false,
		},
		{
			name:          "missing command name",
			text:          "/",
			wantMatched:   true,
			wantErrSubstr: "missing command name",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			candidate, matched, err := ParseCommandCandidate(testCase.text)
			if matched != testCase.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, testCase.wantMatched)
			}
			if testCase.wantErrSubstr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErrSubstr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", testCase.wantErrSubstr)
				}
				if !strings.Contains(err.Error(), testCase.wantErrSubstr) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstr)
				}
				return
			}
			if !matched {
				return
			}

			if candidate.Name != testCase.wantName {
				t.Fatalf("name = %q, want %q", candidate.Name, testCase.wantName)
			}
			if candidate.Mention != testCase.wantMention {
				t.Fatalf("mention = %q, want %q", candidate.Mention, testCase.wantMention)
			}
			if strings.Join(candidate.Args, ",") != strings.Join(testCase.wantArgs, ",") {
				t.Fatalf("args = %v, want %v", candidate.Args, testCase.wantArgs)
			}
		})
	}
}

func TestBindCommand(t *testing.T) {
	t.Parallel()

	spec := CommandSpec{
		Name:        "addinvites",
		Description: "raise an inviter counter",
		ArgsUsage:   "<user_id> <amount>",
		MinArgs:     2,
		MaxArgs:     2,
		AdminOnly:   true,
	}
	sourceEvent := &Event{
		ID:         "evt-source",
		Kind:       EventKindMessageCreated,
		OccurredAt: time.Unix(10, 0).UTC(),
		Platform:   PlatformTelegram,
		Space:      Space{ID: "space-1", Type: SpaceTypeGroup},
		Message:    &Message{ID: "msg-1", Text: "/addinvites 42 10"},
	}

	t.Run("binds valid candidate", func(t *testing.T) {
		t.Parallel()

		candidate, matched, err := ParseCommandCandidate("/addinvites 42 10")
		if err != nil || !matched {
			t.Fatalf("parse candidate: matched=%v err=%v", matched, err)
		}

		invocation, err := BindCommand(candidate, spec, sourceEvent)
		if err != nil {
			t.Fatalf("bind command: %v", err)
		}
		if invocation.Name != "addinvites" {
			t.Fatalf("name = %q, want addinvites", invocation.Name)
		}
		if strings.Join(invocation.Args, ",") != "42,10" {
			t.Fatalf("args = %v, want [42 10]", invocation.Args)
		}
		if invocation.SourceEventID != "evt-source" {
			t.Fatalf("source event id = %q, want evt-source", invocation.SourceEventID)
		}
		if invocation.SourceEventKind != EventKindMessageCreated {
			t.Fatalf("source event kind = %q", invocation.SourceEventKind)
		}
	})

	t.Run("rejects too few args", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/addinvites 42")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}

		_, err = BindCommand(candidate, spec, sourceEvent)
		if err == nil || !strings.Contains(err.Error(), "at least 2") {
			t.Fatalf("error = %v, want arity error", err)
		}
	})

	t.Run("rejects too many args", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/addinvites 42 10 extra")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}

		_, err = BindCommand(candidate, spec, sourceEvent)
		if err == nil || !strings.Contains(err.Error(), "at most 2") {
			t.Fatalf("error = %v, want arity error", err)
		}
	})

	t.Run("rejects name mismatch", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/removeinvites 42 10")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}

		_, err = BindCommand(candidate, spec, sourceEvent)
		if err == nil || !strings.Contains(err.Error(), "name mismatch") {
			t.Fatalf("error = %v, want name mismatch", err)
		}
	})

	t.Run("rejects nil source event", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/addinvites 42 10")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}

		_, err = BindCommand(candidate, spec, nil)
		if err == nil || !strings.Contains(err.Error(), "nil source event") {
			t.Fatalf("error = %v, want nil source event", err)
		}
	})
}

func TestCommandSpecValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		spec          CommandSpec
		wantErrSubstr string
	}{
		{
			name: "valid unlimited args",
			spec: CommandSpec{Name: "inviter", MinArgs: 1, MaxArgs: -1},
		},
		{
			name:          "missing name",
			spec:          CommandSpec{},
			wantErrSubstr: "missing name",
		},
		{
			name:          "name with whitespace",
			spec:          CommandSpec{Name: "add invites"},
			wantErrSubstr: "contains whitespace",
		},
		{
			name:          "max below min",
			spec:          CommandSpec{Name: "invites", MinArgs: 2, MaxArgs: 1},
			wantErrSubstr: "max args below min args",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.spec.Validate()
			if testCase.wantErrSubstr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), testCase.wantErrSubstr) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstr)
			}
		})
	}
}

func TestCommandSpecUsage(t *testing.T) {
	t.Parallel()

	spec := CommandSpec{Name: "AddInvites", ArgsUsage: "<user_id> <amount>"}
	if got := spec.Usage(); got != "/addinvites <user_id> <amount>" {
		t.Fatalf("usage = %q", got)
	}

	bare := CommandSpec{Name: "ping"}
	if got := bare.Usage(); got != "/ping" {
		t.Fatalf("usage = %q", got)
	}
}
