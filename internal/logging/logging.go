package logging

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/IoTeC-ecosystems/backend-app/internal/config"
)

// ParseLevel maps a configured level name to a logrus level, defaulting to
// info.
func ParseLevel(name string) log.Level {
	switch strings.ToUpper(name) {
	case "TRACE":
		return log.TraceLevel
	case "DEBUG":
		return log.DebugLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Configure sets up console logging and, when a file path is configured, a
// rotated plain-text log file.
func Configure(cfg config.Config) error {
	log.SetLevel(ParseLevel(cfg.LogLevel))
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: false})
	log.SetOutput(os.Stdout)

	if cfg.LogFilePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), os.ModePerm); err != nil {
		return err
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    100,
		MaxBackups: 30,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}

	writers := lfshook.WriterMap{}
	for _, level := range log.AllLevels {
		writers[level] = rotated
	}
	log.AddHook(lfshook.NewHook(writers, &log.TextFormatter{DisableColors: true, FullTimestamp: true}))
	return nil
}
