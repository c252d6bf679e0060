package logx

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

var (
	lumberjackLogger = &lumberjack.Logger{
		Filename: getLogFilename(),
		MaxSize:  getMaxSizeMB(), // megabytes
		MaxAge:   getMaxAgeDays(),
	}

	logger = log.New(lumberjackLogger, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

func getLogFilename() string {
	if logFile := os.Getenv("CONFHEIGHT_LOGFILE"); logFile != "" {
		return "./logs/" + logFile
	}
	return "./logs/confheight.log"
}

// getMaxSizeMB falls back to a sane default instead of panicking: unlike
// a node binary, this package is also imported by library callers and
// by the test suite, neither of which set deployment env vars.
func getMaxSizeMB() int {
	v := os.Getenv("CONFHEIGHT_LOGFILE_MAX_SIZE_MB")
	if v == "" {
		return 100
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic("invalid value for CONFHEIGHT_LOGFILE_MAX_SIZE_MB: " + err.Error())
	}
	return n
}

func getMaxAgeDays() int {
	v := os.Getenv("CONFHEIGHT_LOGFILE_MAX_AGE_DAYS")
	if v == "" {
		return 14
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic("invalid value for CONFHEIGHT_LOGFILE_MAX_AGE_DAYS: " + err.Error())
	}
	return n
}

func Info(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[INFO][%s]%s", ColorGreen, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Error(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[ERROR][%s]%s", ColorRed, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Warn(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[WARN][%s]%s", ColorYellow, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Debug(category string, content ...interface{}) {
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[DEBUG][%s]%s", ColorBlue, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

// Errorf logs an error message and returns a formatted error.
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
