// Copyright 2023 The Vex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil wraps the process-wide zap logger.
package logutil

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.Mutex
	logger *zap.Logger = newConsoleLogger("info")
)

func newConsoleLogger(level string) *zap.Logger {
	lv := zap.NewAtomicLevel()
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv.SetLevel(zapcore.InfoLevel)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.Lock(os.Stderr),
		lv,
	)
	return zap.New(core, zap.AddCallerSkip(1))
}

// Setup replaces the global logger.  With a non-empty filename, output
// rotates through lumberjack; otherwise it goes to stderr.
func Setup(level, filename string, maxSizeMB, maxBackups int) {
	mu.Lock()
	defer mu.Unlock()
	if filename == "" {
		logger = newConsoleLogger(level)
		return
	}
	lv := zap.NewAtomicLevel()
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv.SetLevel(zapcore.InfoLevel)
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	})
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, lv)
	logger = zap.New(core, zap.AddCallerSkip(1))
}

func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debugf(format string, args ...any) {
	GetLogger().Sugar().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	GetLogger().Sugar().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	GetLogger().Sugar().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	GetLogger().Sugar().Errorf(format, args...)
}
