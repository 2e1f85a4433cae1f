package logging

import (
	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger from the configured level.
func Init(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, defaulting to info", level)
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// Component returns an entry tagged with the originating component.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
