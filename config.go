// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the yaml configuration of the bot. Zero values are filled
// with defaults by Validate.
type Config struct {
	Freeswitch struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"freeswitch"`

	Listen struct {
		Addr string `yaml:"addr"`
	} `yaml:"listen"`

	Call struct {
		CallerID      string        `yaml:"caller_id"`
		Gateway       string        `yaml:"gateway"`
		Destination   string        `yaml:"destination"`
		AnswerTimeout time.Duration `yaml:"answer_timeout"`
		MaxTurns      int           `yaml:"max_turns"`
	} `yaml:"call"`

	Record struct {
		Dir              string        `yaml:"dir"`
		MaxDuration      time.Duration `yaml:"max_duration"`
		SilenceThreshold int           `yaml:"silence_threshold"`
		SilenceDuration  time.Duration `yaml:"silence_duration"`
		MinBytes         int64         `yaml:"min_bytes"`
		SettleDelay      time.Duration `yaml:"settle_delay"`
	} `yaml:"record"`

	Playback struct {
		Timeout time.Duration `yaml:"timeout"`
		// Sync plays inline on the channel and sleeps the clip duration
		// instead of waiting for broadcast completion events.
		Sync bool `yaml:"sync"`
	} `yaml:"playback"`

	// Greeting is a local wav path or http(s) URL played after answer.
	Greeting string `yaml:"greeting"`

	OpenAI struct {
		APIKey    string `yaml:"api_key"`
		ChatModel string `yaml:"chat_model"`
		TTSVoice  string `yaml:"tts_voice"`
		Persona   string `yaml:"persona"`
	} `yaml:"openai"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf := &Config{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate fills defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.Freeswitch.Addr == "" {
		c.Freeswitch.Addr = "127.0.0.1:8021"
	}
	if c.Freeswitch.Password == "" {
		c.Freeswitch.Password = "ClueCon"
	}
	if c.Listen.Addr == "" {
		c.Listen.Addr = "127.0.0.1:8084"
	}
	if c.Call.AnswerTimeout <= 0 {
		c.Call.AnswerTimeout = 5 * time.Second
	}
	if c.Call.MaxTurns == 0 {
		c.Call.MaxTurns = 3
	}
	if c.Call.MaxTurns < 1 || c.Call.MaxTurns > 10 {
		return fmt.Errorf("call.max_turns must be within 1..10, got %d", c.Call.MaxTurns)
	}
	if c.Record.Dir == "" {
		c.Record.Dir = "recordings"
	}
	if c.Record.MaxDuration <= 0 {
		c.Record.MaxDuration = 20 * time.Second
	}
	if c.Record.SilenceThreshold <= 0 {
		c.Record.SilenceThreshold = 30
	}
	if c.Record.SilenceDuration <= 0 {
		c.Record.SilenceDuration = 3 * time.Second
	}
	if c.Record.MinBytes <= 0 {
		c.Record.MinBytes = 1024
	}
	if c.Record.SettleDelay < 0 {
		return fmt.Errorf("record.settle_delay must not be negative")
	}
	if c.Record.SettleDelay == 0 {
		c.Record.SettleDelay = 2 * time.Second
	}
	if c.Playback.Timeout <= 0 {
		c.Playback.Timeout = 30 * time.Second
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}
