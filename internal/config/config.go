package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"uaspace/internal/logger"
	"uaspace/internal/server"

	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数の接頭辞
const EnvPrefix = "UASPACE_"

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	API     APIConfig     `yaml:"api" json:"api"`
	Model   ModelConfig   `yaml:"model" json:"model"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	History HistoryConfig `yaml:"history" json:"history"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Name           string `yaml:"name" json:"name"`
	Hostname       string `yaml:"hostname" json:"hostname"`
	Port           int    `yaml:"port" json:"port"`
	MinimalProfile bool   `yaml:"minimal_profile" json:"minimal_profile"`
	PollInterval   string `yaml:"poll_interval" json:"poll_interval"`
	NamespaceURI   string `yaml:"namespace_uri" json:"namespace_uri"`
}

// APIConfig はHTTPゲートウェイ設定
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// ModelConfig は情報モデル設定
type ModelConfig struct {
	SkipDefault bool     `yaml:"skip_default" json:"skip_default"`
	Files       []string `yaml:"files" json:"files"`
	WatchDir    string   `yaml:"watch_dir" json:"watch_dir"`
}

// StorageConfig はスナップショット設定
type StorageConfig struct {
	Path             string `yaml:"path" json:"path"`
	SnapshotInterval string `yaml:"snapshot_interval" json:"snapshot_interval"`
	BackupPath       string `yaml:"backup_path" json:"backup_path"`
}

// HistoryConfig はヒストリアン設定
type HistoryConfig struct {
	Path      string `yaml:"path" json:"path"`
	Workers   int    `yaml:"workers" json:"workers"`
	QueueSize int    `yaml:"queue_size" json:"queue_size"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default はデフォルト設定を返す
func Default() *FileConfig {
	return &FileConfig{
		Server: ServerConfig{
			Name:         "uaspace",
			Hostname:     server.DefaultHostname,
			Port:         server.DefaultPort,
			PollInterval: server.DefaultPollInterval.String(),
			NamespaceURI: "urn:uaspace:server",
		},
		API: APIConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		History: HistoryConfig{
			Workers:   2,
			QueueSize: 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile は設定ファイルを読み込む
// 指定されなかった項目はデフォルト値のまま残る
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return config, nil
}

// ApplyEnv は UASPACE_* 環境変数で設定を上書きする
// lookup が nil の場合は os.LookupEnv を使う
func (f *FileConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		return lookup(EnvPrefix + name)
	}

	strs := map[string]*string{
		"HOSTNAME":      &f.Server.Hostname,
		"POLL_INTERVAL": &f.Server.PollInterval,
		"NAMESPACE_URI": &f.Server.NamespaceURI,
		"API_ADDR":      &f.API.Addr,
		"MODEL_DIR":     &f.Model.WatchDir,
		"STORAGE_PATH":  &f.Storage.Path,
		"HISTORY_PATH":  &f.History.Path,
		"LOG_LEVEL":     &f.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT: %w", EnvPrefix, err)
		}
		f.Server.Port = port
	}

	bools := map[string]*bool{
		"MINIMAL_PROFILE": &f.Server.MinimalProfile,
		"API_ENABLED":     &f.API.Enabled,
	}
	for name, dst := range bools {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	return nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Server.Port < 0 || f.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}

	if _, err := parseDuration(f.Server.PollInterval); err != nil {
		return fmt.Errorf("invalid server.poll_interval: %w", err)
	}

	if _, err := parseDuration(f.Storage.SnapshotInterval); err != nil {
		return fmt.Errorf("invalid storage.snapshot_interval: %w", err)
	}

	if f.API.Enabled && f.API.Addr == "" {
		return fmt.Errorf("api.addr is required when the api is enabled")
	}

	if f.History.Workers < 0 {
		return fmt.Errorf("history.workers must be non-negative")
	}

	if f.History.QueueSize < 0 {
		return fmt.Errorf("history.queue_size must be non-negative")
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return err
	}

	return nil
}

// ToServerConfig はFileConfigをserver.Configに変換する
func (f *FileConfig) ToServerConfig() (server.Config, error) {
	sc := f.Server

	config := server.Config{
		Hostname:       sc.Hostname,
		Port:           sc.Port,
		MinimalProfile: sc.MinimalProfile,
	}

	d, err := parseDuration(sc.PollInterval)
	if err != nil {
		return config, fmt.Errorf("invalid poll interval: %w", err)
	}
	config.PollInterval = d

	// 未指定の項目はデフォルト値で埋める
	return config.WithDefaults(), nil
}

// SnapshotInterval は定期スナップショットの間隔を返す (0は無効)
func (f *FileConfig) SnapshotInterval() time.Duration {
	d, _ := parseDuration(f.Storage.SnapshotInterval)
	return d
}

// LogLevel は設定されたログレベルを返す
func (f *FileConfig) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(f.Log.Level)
	return level
}

// parseDuration は空文字列を0として扱う
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}
	return d, nil
}
