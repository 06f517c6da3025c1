package util

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "serpro.util")

func DebugEnabled() bool {
	return etb("SERPRO_DEBUG")
}

func HttpTraceEnabled() bool {
	return etb("SERPRO_HTTP_TRACE")
}

func etb(envName string) bool {
	v, ok := os.LookupEnv(envName)
	if !ok {
		return false
	}

	bv, err := strconv.ParseBool(v)

	return err == nil && bv
}

func GetEnvOrFailed(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Fatal(key, " environment variable is not set")
	}
	return v
}

// ConfigureLogging sets the global logrus level and formatter.
// SERPRO_DEBUG=true wins over the given level.
func ConfigureLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if DebugEnabled() {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
