package cmd

import "testing"

func TestPostCreateFlags(t *testing.T) {
	t.Parallel()

	cmd := newPostCreateCmd()
	if err := cmd.ParseFlags([]string{
		"--message", "hello",
		"--fail",
		"--propagation", "requires-new",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	message, _ := cmd.Flags().GetString("message")
	if message != "hello" {
		t.Fatalf("message = %q, want hello", message)
	}

	fail, _ := cmd.Flags().GetBool("fail")
	if !fail {
		t.Fatalf("fail = false, want true")
	}

	propagation, _ := cmd.Flags().GetString("propagation")
	if propagation != "requires-new" {
		t.Fatalf("propagation = %q, want requires-new", propagation)
	}
}

func TestPostImportFlagsRepeat(t *testing.T) {
	t.Parallel()

	cmd := newPostImportCmd()
	if err := cmd.ParseFlags([]string{
		"--message", "a,b",
		"--message", "c",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	messages, _ := cmd.Flags().GetStringArray("message")
	if len(messages) != 2 || messages[0] != "a,b" || messages[1] != "c" {
		t.Fatalf("message = %v", messages)
	}
}

func TestScenarioRunFlags(t *testing.T) {
	t.Parallel()

	cmd := newScenarioRunCmd()
	if err := cmd.ParseFlags([]string{"--file", "scenarios/mixed.toml"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	file, _ := cmd.Flags().GetString("file")
	if file != "scenarios/mixed.toml" {
		t.Fatalf("file = %q, want scenarios/mixed.toml", file)
	}
}

func TestParsePropagationFlagKeepsDefaultWhenEmpty(t *testing.T) {
	t.Parallel()

	if p, err := parsePropagationFlag(" "); err != nil || p != nil {
		t.Fatalf("parsePropagationFlag(empty) = %v, %v", p, err)
	}
	p, err := parsePropagationFlag("nested")
	if err != nil || p == nil || p.String() != "NESTED" {
		t.Fatalf("parsePropagationFlag(nested) = %v, %v", p, err)
	}
	if _, err := parsePropagationFlag("sometimes"); err == nil {
		t.Fatalf("parsePropagationFlag() expected error")
	}
}
