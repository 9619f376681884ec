package logger

import (
	"errors"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	Init(InfoLevel, "text")
	log := Get()
	if log == nil {
		t.Fatal("Logger is nil")
	}
}

func TestLoggerLevels(t *testing.T) {
	Init(DebugLevel, "text")
	log := Get()
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
}

func TestLoggerWith(t *testing.T) {
	Init(InfoLevel, "text")
	log := Get().With("key", "value")
	log.Info("message")

	named := Get().Named("registry")
	if named == nil {
		t.Fatal("Named logger is nil")
	}
}

func TestLoggerWithErr(t *testing.T) {
	Init(InfoLevel, "text")
	log := Get()
	log.ErrorWithErr("failed", errors.New("boom"))
	log.WarnWithErr("degraded", errors.New("boom"))
}

func TestLoggerFormats(t *testing.T) {
	for _, fmt := range []string{"text", "json"} {
		Init(InfoLevel, fmt)
		log := Get()
		if log == nil {
			t.Errorf("Logger nil for format %s", fmt)
		}
	}
}
