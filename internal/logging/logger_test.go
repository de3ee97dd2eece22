package logging

import "testing"

func TestNewStdoutHasNoCloser(t *testing.T) {
	logger, closer, err := New(Config{Level: "debug", Output: "stdout"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
	if closer != nil {
		t.Error("expected no closer for stdout output")
	}
}

func TestNewFileOutputReturnsCloser(t *testing.T) {
	path := t.TempDir() + "/gateway.log"
	logger, closer, err := New(Config{Level: "info", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if closer == nil {
		t.Fatal("expected a closer for file output")
	}
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSetGlobalReplacesLogger(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	logger, _, err := New(Config{Level: "warn", Output: "stdout"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	SetGlobal(logger)
	if Global() != logger {
		t.Error("expected Global() to return the logger set via SetGlobal")
	}
}
