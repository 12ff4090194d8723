package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calder-west/stowage/job"
	"github.com/sirupsen/logrus"
)

// global logging
var Logx = logrus.New()

// typecasts logrus levels based on basic string ID
func logLevelStringSwitch(logLevelString string) logrus.Level {
	switch logLevelString {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// merges package presets + additional fields for logging, saving on code repetition
func MergeFields(presetFields map[string]interface{}, addOnFields map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(presetFields)+len(addOnFields))
	for key, value := range presetFields {
		merged[key] = value
	}
	for key, value := range addOnFields {
		merged[key] = value
	}
	return merged
}

// core, minimum log fields for all structured logging
func CoreLogFields(context *job.JobContext, pkg string) map[string]interface{} {
	return map[string]interface{}{
		"job_id":  context.JobID,
		"package": pkg,
	}
}

// log to both stdout & persistent output with dynamic map for fields
func LogxWithFields(levelString string, msg string, fields map[string]interface{}) {
	entry := Logx.WithFields(fields)

	level := logLevelStringSwitch(levelString)

	switch level {
	case logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.InfoLevel:
		entry.Info(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.ErrorLevel:
		entry.Error(msg)
	case logrus.FatalLevel:
		entry.Fatal(msg)
	default:
		entry.Info(msg)
	}
}

// opens the append-only run log and points the global logger at both the
// logfile and stdout, so interactive sessions see every persisted entry
func InitLogging(stowageBase, defaultLogLevelString, logFormat string, logTextColour bool) (logFilePath string) {

	logFilePath = filepath.Join(stowageBase, "stowage-main.log")
	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("ERROR: Failed to initialize logging: %v", err)
		os.Exit(1)
	}

	// multi-writer to output to .log and stdout
	multiWriter := io.MultiWriter(logFile, os.Stdout)

	Logx.SetOutput(multiWriter)

	if logFormat == "json" {
		Logx.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		Logx.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     logTextColour,
			PadLevelText:    true,
		})
	}

	Logx.SetLevel(logLevelStringSwitch(defaultLogLevelString))

	return logFilePath
}
