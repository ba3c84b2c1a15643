/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

var (
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}
	consoleLogFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	defaultLogLevel  = EnvDefaultString("LOG_LEVEL", "info")
)

// EnvDefaultString reads an environment variable with a fallback.
func EnvDefaultString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// EnvDefaultBool reads a boolean environment variable with a fallback.
func EnvDefaultBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// NewLogger returns the named logger, creating it on first use. Loggers are
// process-wide so components such as the field-security filter and the
// lifecycle services share configuration by name.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.RLock()
	if l, ok := loggerRegistry[name]; ok {
		loggerRegistryMu.RUnlock()
		return l
	}
	loggerRegistryMu.RUnlock()

	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if l, ok := loggerRegistry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if strings.EqualFold(consoleLogFormat, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(defaultLogLevel); err == nil {
		l.SetLevel(level)
	}
	loggerRegistry[name] = l
	return l
}

// SetLoggerLevel changes the level of a named logger.
func SetLoggerLevel(name, level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return
	}
	NewLogger(name).SetLevel(parsed)
}
