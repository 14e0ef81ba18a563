package save

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diamondclub/watcher/diamondclub"
	"github.com/diamondclub/watcher/irc"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	settingsFileName = "settings.yaml"
	minLineLength    = 512
)

type Settings struct {
	IRC        IRCSettings        `yaml:"irc"`
	API        APISettings        `yaml:"api"`
	Transcript TranscriptSettings `yaml:"transcript"`
}

type IRCSettings struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Channel       string        `yaml:"channel"`
	Nickname      string        `yaml:"nickname"`
	RealName      string        `yaml:"real_name"`
	TLS           bool          `yaml:"tls"`
	WebSocketURL  string        `yaml:"websocket_url"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	KeepAlive     time.Duration `yaml:"keep_alive"`
	MaxLineLength int           `yaml:"max_line_length"`
}

type APISettings struct {
	Host string `yaml:"host"`
}

type TranscriptSettings struct {
	Enabled        bool     `yaml:"enabled"`
	ChannelInclude []string `yaml:"channel_include"`
	ChannelExclude []string `yaml:"channel_exclude"`
}

func BuildDefaultSettings() Settings {
	return Settings{
		IRC: IRCSettings{
			Host:          "irc.chatrealm.net",
			Port:          6667,
			Channel:       "test",
			RealName:      irc.DefaultRealName,
			WriteTimeout:  irc.DefaultWriteTimeout,
			MaxLineLength: irc.DefaultMaxLineLength,
		},
		API: APISettings{
			Host: diamondclub.DefaultHost,
		},
		Transcript: TranscriptSettings{
			Enabled: true,
		},
	}
}

func (s Settings) Validate() error {
	if s.IRC.WebSocketURL == "" && s.IRC.Host == "" {
		return errors.New("irc.host can't be empty")
	}

	if s.IRC.Port < 1 || s.IRC.Port > 65535 {
		return fmt.Errorf("irc.port %d is out of range", s.IRC.Port)
	}

	if s.IRC.Channel == "" {
		return errors.New("irc.channel can't be empty")
	}

	if strings.HasPrefix(s.IRC.Channel, "#") {
		return fmt.Errorf("irc.channel %q must be given without leading #", s.IRC.Channel)
	}

	if strings.ContainsAny(s.IRC.Nickname, " \r\n") {
		return fmt.Errorf("irc.nickname %q can't contain whitespace", s.IRC.Nickname)
	}

	if s.IRC.MaxLineLength != 0 && s.IRC.MaxLineLength < minLineLength {
		return fmt.Errorf("irc.max_line_length must be 0 or at least %d", minLineLength)
	}

	if s.IRC.WriteTimeout < 0 || s.IRC.KeepAlive < 0 {
		return errors.New("irc timeouts can't be negative")
	}

	if len(s.Transcript.ChannelExclude) > 0 && len(s.Transcript.ChannelInclude) > 0 {
		return errors.New("cant't have both of channel_include and channel_exclude in settings.transcript")
	}

	return nil
}

// SessionConfig converts the IRC settings. nickname replaces an empty configured nickname.
func (s IRCSettings) SessionConfig(nickname string) irc.Config {
	if s.Nickname != "" {
		nickname = s.Nickname
	}

	return irc.Config{
		Host:          s.Host,
		Port:          s.Port,
		Channel:       s.Channel,
		Nickname:      nickname,
		RealName:      s.RealName,
		WriteTimeout:  s.WriteTimeout,
		MaxLineLength: s.MaxLineLength,
		KeepAlive:     s.KeepAlive,
	}
}

// SettingsFromDisk reads the settings file from the user config directory,
// creating it when missing.
func SettingsFromDisk(fs afero.Fs) (Settings, error) {
	dir, err := ConfigDir()
	if err != nil {
		return Settings{}, err
	}

	return ReadSettings(fs, dir)
}

// ReadSettings reads settings.yaml below dir. An empty file yields the defaults.
func ReadSettings(fs afero.Fs, dir string) (Settings, error) {
	f, err := openCreateFile(fs, dir, settingsFileName)
	if err != nil {
		return Settings{}, err
	}

	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return Settings{}, err
	}

	settings := BuildDefaultSettings()

	if len(b) == 0 {
		return settings, nil
	}

	if err := yaml.Unmarshal(b, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse %s: %w", settingsFileName, err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func openCreateFile(fs afero.Fs, dir string, file string) (afero.File, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return fs.OpenFile(filepath.Join(dir, file), os.O_RDWR|os.O_CREATE, 0o600)
}
