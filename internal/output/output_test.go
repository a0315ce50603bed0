package output

import (
	"bytes"
	"strings"
	"testing"
)

func newBuffered(opts Options) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	opts.NoColor = true
	opts.Stdout = &stdout
	opts.Stderr = &stderr
	return New(opts), &stdout, &stderr
}

func TestNotifierStreams(t *testing.T) {
	out, stdout, stderr := newBuffered(Options{})
	out.Success("✅ Lora-1 encendido correctamente")
	out.Warn("⚠️ Lora-1 no confirmó encender tras 2m0s")
	out.Error("❌ Gateway no responde")

	if got := stdout.String(); !strings.Contains(got, "encendido correctamente") || !strings.Contains(got, "no confirmó") {
		t.Fatalf("stdout: %q", got)
	}
	if got := stderr.String(); got != "❌ Gateway no responde\n" {
		t.Fatalf("stderr: %q", got)
	}
}

func TestJSONModeKeepsStdoutClean(t *testing.T) {
	out, stdout, stderr := newBuffered(Options{JSON: true})
	out.Success("hecho")
	out.Info("info")
	out.Warn("aviso")
	if err := out.EmitJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("EmitJSON: %v", err)
	}
	if got := stdout.String(); got != "{\n  \"n\": 1\n}\n" {
		t.Fatalf("stdout: %q", got)
	}
	if !strings.Contains(stderr.String(), "aviso") {
		t.Fatalf("warning lost: %q", stderr.String())
	}
}

func TestQuietSuppressesAllButErrors(t *testing.T) {
	out, stdout, stderr := newBuffered(Options{Quiet: true})
	out.Success("ok")
	out.Warn("warn")
	out.Error("boom")
	if stdout.Len() != 0 {
		t.Fatalf("stdout: %q", stdout.String())
	}
	if stderr.String() != "boom\n" {
		t.Fatalf("stderr: %q", stderr.String())
	}
}

func TestTable(t *testing.T) {
	out, stdout, _ := newBuffered(Options{})
	err := out.Table([]string{"ALIAS", "ESTADO"}, [][]string{{"Lora-10", "online"}, {"B", "offline"}})
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	want := "ALIAS    ESTADO\nLora-10  online\nB        offline\n"
	if stdout.String() != want {
		t.Fatalf("table:\n%q\nwant\n%q", stdout.String(), want)
	}

	plain, pstdout, _ := newBuffered(Options{Plain: true})
	_ = plain.Table([]string{"ALIAS"}, [][]string{{"x"}})
	if pstdout.String() != "x\n" {
		t.Fatalf("plain table: %q", pstdout.String())
	}
}
