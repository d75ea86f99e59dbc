package config

import (
	"bufio"
	"os"
	"strings"

	"warkrs/internal/model"
)

const cookieEnvPrefix = "SIAKAD_COOKIE_"

// LoadDotEnv injects KEY=VALUE pairs from a local .env file into the process
// environment without overriding variables the user already set. Missing
// file is not an error.
func LoadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		val := strings.TrimSpace(v)
		val = strings.Trim(val, `"`)
		val = strings.Trim(val, `'`)
		if val == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
}

// applyEnv lets the environment supply or override secrets so they can stay
// out of the config file: SIAKAD_COOKIE_<NAME> for session cookies and
// TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID for the notification channel.
func (c *Config) applyEnv() {
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, cookieEnvPrefix) {
			continue
		}
		name := strings.TrimPrefix(k, cookieEnvPrefix)
		if name == "" || v == "" {
			continue
		}
		if c.Cookies == nil {
			c.Cookies = model.SessionCookies{}
		}
		c.Cookies[name] = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}
