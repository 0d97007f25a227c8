package config

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func SetupLogging(c Config) {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if c.Server.LogFile != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   c.Server.LogFile,
			MaxSize:    c.Server.LogMaxSizeMB,
			MaxBackups: c.Server.LogMaxBackups,
			MaxAge:     c.Server.LogMaxAgeDays,
		})
	}
	log.Logger = log.Output(out)
}
