package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger

	debugEnabled bool
)

// Init sets up the shared loggers writing to stdout and a date-stamped
// file under logDir. Level is "DEBUG" or anything else for info-and-up.
func Init(logDir string, level string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("pagesmith_%s.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	multiWriter := io.MultiWriter(os.Stdout, f)

	InfoLogger = log.New(multiWriter, "[INFO] ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(multiWriter, "[ERROR] ", log.Ldate|log.Ltime|log.Lshortfile)
	debugEnabled = strings.EqualFold(strings.TrimSpace(level), "DEBUG")

	return nil
}

func Info(format string, v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Output(2, fmt.Sprintf(format, v...))
	} else {
		log.Printf("[INFO] "+format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Output(2, fmt.Sprintf(format, v...))
	} else {
		log.Printf("[ERROR] "+format, v...)
	}
}

func Debug(format string, v ...interface{}) {
	if !debugEnabled {
		return
	}
	if InfoLogger != nil {
		InfoLogger.Output(2, "[DEBUG] "+fmt.Sprintf(format, v...))
	} else {
		log.Printf("[DEBUG] "+format, v...)
	}
}
