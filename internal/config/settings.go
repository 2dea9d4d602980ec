package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ytget/yt-downloader-bot/internal/bot"
	"github.com/ytget/yt-downloader-bot/internal/platform"
)

// EnvPrefix prefixes every environment variable, e.g. YTBOT_TELEGRAM_TOKEN
const EnvPrefix = "YTBOT"

// Settings keys
const (
	KeyTelegramToken   = "telegram.token"
	KeyWebhookURL      = "telegram.webhook_url"
	KeyWebhookSecret   = "telegram.webhook_secret"
	KeyAllowedUsers    = "telegram.allowed_users"
	KeyTelegramDebug   = "telegram.debug"
	KeyListenAddr      = "server.listen"
	KeyPort            = "server.port"
	KeyShutdownTimeout = "server.shutdown_timeout"
	KeyAPIToken        = "server.api_token"
	KeyAPIDir          = "server.api_dir"
	KeyWorkRoot        = "download.work_root"
	KeyMaxHeight       = "download.max_height"
	KeyMergeFormat     = "download.merge_format"
	KeyRetries         = "download.retries"
	KeyMaxParallel     = "download.max_parallel"
	KeyMinFreeBytes    = "download.min_free_bytes"
	KeyCookiesB64      = "download.cookies_b64"
	KeyCookiesFile     = "download.cookies_file"
	KeyInstallYTDLP    = "download.install_ytdlp"
	KeyFFmpeg          = "split.ffmpeg"
	KeyFFprobe         = "split.ffprobe"
	KeyEditInterval    = "progress.edit_interval"
	KeyLanguage        = "bot.language"
	KeyLogLevel        = "logging.level"
	KeyLogFormat       = "logging.format"
	KeyLogAddSource    = "logging.add_source"
)

// Environment variable names kept from earlier deployments
var legacyEnv = map[string][]string{
	KeyTelegramToken: {"TELEGRAM_BOT_TOKEN", "BOT_TOKEN"},
	KeyWebhookURL:    {"WEBHOOK_URL"},
	KeyCookiesB64:    {"YT_COOKIES_B64"},
	KeyPort:          {"PORT"},
	KeyAPIToken:      {"SECRET_TOKEN"},
}

// Default values
const (
	DefaultPort            = "5000"
	DefaultAPIDirName      = "api"
	DefaultShutdownTimeout = 60 * time.Second
	DefaultMaxHeight       = 720
	DefaultMergeFormat     = "mp4"
	DefaultRetries         = 10
	DefaultMaxParallel     = 0
	DefaultMinFreeBytes    = 0
	DefaultFFmpeg          = "ffmpeg"
	DefaultFFprobe         = "ffprobe"
	DefaultEditInterval    = 0 * time.Second
	DefaultLanguage        = bot.DefaultLanguage
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Settings manages application configuration
type Settings struct {
	v *viper.Viper
}

// NewSettings creates settings over v, reading YTBOT_* and the legacy
// environment variables on top of the defaults
func NewSettings(v *viper.Viper) *Settings {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		_ = v.BindEnv(append([]string{key, envName(key)}, names...)...)
	}

	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyMaxHeight, DefaultMaxHeight)
	v.SetDefault(KeyMergeFormat, DefaultMergeFormat)
	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyMaxParallel, DefaultMaxParallel)
	v.SetDefault(KeyMinFreeBytes, DefaultMinFreeBytes)
	v.SetDefault(KeyFFmpeg, DefaultFFmpeg)
	v.SetDefault(KeyFFprobe, DefaultFFprobe)
	v.SetDefault(KeyEditInterval, DefaultEditInterval)
	v.SetDefault(KeyLanguage, DefaultLanguage)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)

	return &Settings{v: v}
}

// Viper returns the underlying viper instance, used to bind command flags
func (s *Settings) Viper() *viper.Viper {
	return s.v
}

// LoadDotEnv loads environment variables from .env files. Missing files
// are skipped; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ReadFile merges a yaml, json or toml config file
func (s *Settings) ReadFile(path string) error {
	if path == "" {
		return nil
	}
	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// GetTelegramToken returns the Bot API token
func (s *Settings) GetTelegramToken() string {
	return strings.TrimSpace(s.v.GetString(KeyTelegramToken))
}

// GetWebhookURL returns the public webhook URL, empty when unset
func (s *Settings) GetWebhookURL() string {
	return strings.TrimSpace(s.v.GetString(KeyWebhookURL))
}

// GetWebhookSecret returns the secret expected in the webhook secret header
func (s *Settings) GetWebhookSecret() string {
	return s.v.GetString(KeyWebhookSecret)
}

// GetTelegramDebug returns whether Bot API requests are logged
func (s *Settings) GetTelegramDebug() bool {
	return s.v.GetBool(KeyTelegramDebug)
}

// GetAllowedUsers returns the user ids allowed to use the bot. An empty
// list allows everyone. Accepts a list or a comma separated string.
func (s *Settings) GetAllowedUsers() ([]int64, error) {
	var raw []string
	for _, item := range s.v.GetStringSlice(KeyAllowedUsers) {
		raw = append(raw, strings.Split(item, ",")...)
	}

	var ids []int64
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", KeyAllowedUsers, item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetListenAddr returns the webhook server address. Without an explicit
// address it listens on all interfaces on server.port.
func (s *Settings) GetListenAddr() string {
	if addr := strings.TrimSpace(s.v.GetString(KeyListenAddr)); addr != "" {
		return addr
	}
	port := strings.TrimSpace(s.v.GetString(KeyPort))
	if port == "" {
		port = DefaultPort
	}
	return ":" + port
}

// GetShutdownTimeout returns how long shutdown waits for the server and running jobs
func (s *Settings) GetShutdownTimeout() time.Duration {
	if d := s.v.GetDuration(KeyShutdownTimeout); d > 0 {
		return d
	}
	return DefaultShutdownTimeout
}

// GetAPIToken returns the bearer token of the HTTP download API. The API is
// disabled when it is empty.
func (s *Settings) GetAPIToken() string {
	return strings.TrimSpace(s.v.GetString(KeyAPIToken))
}

// GetAPIDir returns the directory kept for HTTP download API results
func (s *Settings) GetAPIDir() string {
	if dir := strings.TrimSpace(s.v.GetString(KeyAPIDir)); dir != "" {
		return dir
	}
	return filepath.Join(s.GetWorkRoot(), DefaultAPIDirName)
}

// GetWorkRoot returns the directory under which job work dirs are created
func (s *Settings) GetWorkRoot() string {
	if root := strings.TrimSpace(s.v.GetString(KeyWorkRoot)); root != "" {
		return root
	}
	return platform.GetDefaultWorkRoot()
}

// GetMaxHeight returns the highest video height to download
func (s *Settings) GetMaxHeight() int {
	if h := s.v.GetInt(KeyMaxHeight); h >= 0 {
		return h
	}
	return DefaultMaxHeight
}

// GetMergeFormat returns the container used to merge video and audio
func (s *Settings) GetMergeFormat() string {
	if f := strings.TrimSpace(s.v.GetString(KeyMergeFormat)); f != "" {
		return f
	}
	return DefaultMergeFormat
}

// GetRetries returns the fetch engine retry count
func (s *Settings) GetRetries() int {
	if r := s.v.GetInt(KeyRetries); r > 0 {
		return r
	}
	return DefaultRetries
}

// GetMaxParallel returns the worker pool bound, 0 for unbounded
func (s *Settings) GetMaxParallel() int {
	if n := s.v.GetInt(KeyMaxParallel); n > 0 {
		return n
	}
	return 0
}

// GetMinFreeBytes returns the free space floor checked before each job
func (s *Settings) GetMinFreeBytes() uint64 {
	if n := s.v.GetInt64(KeyMinFreeBytes); n > 0 {
		return uint64(n)
	}
	return 0
}

// GetCookiesB64 returns base64 encoded cookies for the fetch engine
func (s *Settings) GetCookiesB64() string {
	return strings.TrimSpace(s.v.GetString(KeyCookiesB64))
}

// GetCookiesFile returns a cookies file path for the fetch engine
func (s *Settings) GetCookiesFile() string {
	return strings.TrimSpace(s.v.GetString(KeyCookiesFile))
}

// GetInstallYTDLP returns whether yt-dlp is installed on startup when missing
func (s *Settings) GetInstallYTDLP() bool {
	return s.v.GetBool(KeyInstallYTDLP)
}

// GetFFmpeg returns the ffmpeg executable
func (s *Settings) GetFFmpeg() string {
	if p := strings.TrimSpace(s.v.GetString(KeyFFmpeg)); p != "" {
		return p
	}
	return DefaultFFmpeg
}

// GetFFprobe returns the ffprobe executable
func (s *Settings) GetFFprobe() string {
	if p := strings.TrimSpace(s.v.GetString(KeyFFprobe)); p != "" {
		return p
	}
	return DefaultFFprobe
}

// GetEditInterval returns the minimum spacing of progress edits to one message
func (s *Settings) GetEditInterval() time.Duration {
	if d := s.v.GetDuration(KeyEditInterval); d > 0 {
		return d
	}
	return 0
}

// GetLanguage returns the bot language
func (s *Settings) GetLanguage() string {
	lang := strings.ToLower(strings.TrimSpace(s.v.GetString(KeyLanguage)))
	if _, ok := s.GetLanguageOptions()[lang]; !ok {
		return DefaultLanguage
	}
	return lang
}

// GetLanguageOptions returns available language options
func (s *Settings) GetLanguageOptions() map[string]string {
	return map[string]string{
		bot.LanguagePortuguese: "Português",
		bot.LanguageEnglish:    "English",
	}
}

// GetLogLevel, GetLogFormat and GetLogAddSource configure the logger
func (s *Settings) GetLogLevel() string { return s.v.GetString(KeyLogLevel) }

func (s *Settings) GetLogFormat() string { return s.v.GetString(KeyLogFormat) }

func (s *Settings) GetLogAddSource() bool { return s.v.GetBool(KeyLogAddSource) }

// envName returns the prefixed environment variable for key
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
