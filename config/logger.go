package config

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a JSON zap logger writing to stdout and, when LogFileName is set,
// to a rotated file.
func NewLogger(s Server) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if s.LogLevel != "" {
		l, err := zapcore.ParseLevel(s.LogLevel)
		if err != nil {
			return nil, err
		}
		level = l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)}
	if s.LogFileName != "" {
		rotate := &lumberjack.Logger{
			Filename:   s.LogFileName,
			MaxSize:    s.LogMaxSize,
			MaxBackups: s.LogMaxBackups,
			MaxAge:     s.LogMaxAge,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotate), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
