package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ClientConfig drives the command-line softphone.
type ClientConfig struct {
	ServerURL   string        `mapstructure:"server_url" validate:"required,url"`
	User        string        `mapstructure:"user" validate:"required"`
	Call        string        `mapstructure:"call"`
	Answer      string        `mapstructure:"answer" validate:"oneof=ask accept reject"`
	HangupAfter time.Duration `mapstructure:"hangup_after"`
	RingTimeout time.Duration `mapstructure:"ring_timeout" validate:"min=0"`
	ICEServers  []string      `mapstructure:"ice_servers"`
	LogLevel    string        `mapstructure:"log_level"`
}

// DefaultICEServers is the STUN server used when none is configured.
func DefaultICEServers() []string {
	return []string{"stun:stun.l.google.com:19302"}
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("user", "")
	v.SetDefault("call", "")
	v.SetDefault("hangup_after", "0s")
	v.SetDefault("answer", "accept")
	v.SetDefault("ring_timeout", "30s")
	v.SetDefault("ice_servers", DefaultICEServers())
	v.SetDefault("log_level", "info")
}

// ClientFlags declares the flags LoadClient understands.
func ClientFlags(fs *pflag.FlagSet) {
	fs.String("server_url", "", "signaling endpoint (ws:// or wss://)")
	fs.String("user", "", "user id to connect as")
	fs.String("call", "", "user id to call once connected")
	fs.String("answer", "", "incoming calls: ask, accept or reject")
	fs.Duration("hangup_after", 0, "hang up an active call after this long (0 keeps it)")
	fs.Duration("ring_timeout", 0, "give up ringing after this long (0 disables)")
	fs.StringSlice("ice_servers", nil, "STUN/TURN urls")
	fs.String("log_level", "", "zerolog level")
}

// LoadClient merges defaults, the config file, RINGER_* env and explicitly set flags.
func LoadClient(fs *pflag.FlagSet) (*ClientConfig, error) {
	v := newViper()
	setClientDefaults(v)
	readFile(v)

	if fs != nil {
		var bindErr error
		fs.Visit(func(f *pflag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return &cfg, nil
}
