package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyCheckIntervalSeconds = "update.check-interval-seconds"
	KeyCheckInterval        = "update.check-interval" // Deprecated: use KeyCheckIntervalSeconds.
	KeyAutoCheck            = "update.auto-check"
	KeyAutoDownload         = "update.auto-download"
	KeyAllowAutomatic       = "update.allow-automatic"
	KeyFeedURL              = "update.feed-url"
	KeyInstallerCommand     = "update.installer-command"
	KeyLastCheck            = "update.last-check"

	KeyHistoryPath  = "history.path"
	KeyOutputFormat = "output.format"
	KeyServerAddr   = "server.addr"
)

const (
	// DefaultCheckIntervalSeconds is the default scheduled check interval.
	// Exported so the update driver can use the same default as fallback.
	DefaultCheckIntervalSeconds = 3600
	// DefaultServerAddr is where `updatekit serve` listens by default.
	DefaultServerAddr = "127.0.0.1:8089"

	dirName   = ".updatekit"
	fileName  = "config.yaml"
	envPrefix = "UK"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error

	// resolved holds the paths chosen by the last successful Initialize so
	// SaveKeys writes back to the same files it read.
	resolved initSettings
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return v.GetBool(key)
}

// GetInt fetches an integer configuration value, initializing on demand.
func GetInt(key string) int {
	v, err := getViper()
	if err != nil {
		return 0
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return v.GetInt(key)
}

// GetFloat64 fetches a floating-point configuration value, initializing on
// demand.
func GetFloat64(key string) float64 {
	v, err := getViper()
	if err != nil {
		return 0
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return v.GetFloat64(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	configMu.RLock()
	defer configMu.RUnlock()
	return v.GetDuration(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

// SetDefault replaces the default for key. The application manifest uses it
// to seed values that preferences may still override.
func SetDefault(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.SetDefault(key, value)
	return nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}
	applyLegacyCheckInterval(v)

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	resolved = initSettings{
		workingDir:        workingDir,
		projectConfigPath: projectConfigPath,
		userConfigPath:    userConfigPath,
	}
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Dir returns ~/.updatekit, where the user config, history database and
// session lock live.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func defaultUserConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, dirName, fileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyCheckIntervalSeconds, DefaultCheckIntervalSeconds)
	v.SetDefault(KeyAutoCheck, true)
	v.SetDefault(KeyAutoDownload, false)
	v.SetDefault(KeyAllowAutomatic, true)
	v.SetDefault(KeyFeedURL, "")
	v.SetDefault(KeyInstallerCommand, "")
	v.SetDefault(KeyLastCheck, "")
	v.SetDefault(KeyHistoryPath, "")
	v.SetDefault(KeyOutputFormat, "rich")
	v.SetDefault(KeyServerAddr, DefaultServerAddr)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
	resolved = initSettings{}
}

// ResetForTesting clears package state for tests in other packages. The
// user config lives in a temp dir so SaveKeys never touches the real home.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, fileName)))
	return reset
}

// applyLegacyCheckInterval maps the old duration-valued key ("90m") onto
// update.check-interval-seconds unless the new key was given explicitly.
func applyLegacyCheckInterval(v *viper.Viper) {
	if v == nil {
		return
	}
	if v.InConfig(KeyCheckIntervalSeconds) || isSetInEnv(KeyCheckIntervalSeconds) {
		return
	}
	if v.IsSet(KeyCheckInterval) {
		v.Set(KeyCheckIntervalSeconds, durationToSeconds(v.GetDuration(KeyCheckInterval)))
	}
}

func isSetInEnv(key string) bool {
	_, ok := os.LookupEnv(envKey(key))
	return ok
}

func envKey(key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(envPrefix) + "_" + strings.ToUpper(replacer.Replace(key))
}

func durationToSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	if seconds <= 0 {
		seconds = 1
	}
	return seconds
}

// SaveKeys persists the current values of keys to the appropriate config file.
// If a project config (.updatekit/config.yaml) exists, it updates that file.
// Otherwise, it updates the user config (~/.updatekit/config.yaml).
// The user config directory is auto-created if needed, but project config
// directories are never auto-created.
func SaveKeys(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	current, err := getViper()
	if err != nil {
		return err
	}

	targetPath, err := findWritableConfigPath()
	if err != nil {
		return fmt.Errorf("find config path: %w", err)
	}

	// A fresh viper instance for this file only keeps defaults and env
	// values out of the written file.
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(targetPath)
	_ = v.ReadInConfig() // ignore error if file doesn't exist

	configMu.RLock()
	for _, key := range keys {
		v.Set(key, current.Get(key))
	}
	configMu.RUnlock()

	dir := filepath.Dir(targetPath)
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := v.WriteConfigAs(targetPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// findWritableConfigPath determines which config file to write to.
// Returns the project config path if one was found, otherwise the user config path.
func findWritableConfigPath() (string, error) {
	configMu.RLock()
	settings := resolved
	configMu.RUnlock()

	if settings.projectConfigPath != "" {
		if info, err := os.Stat(settings.projectConfigPath); err == nil && !info.IsDir() {
			return settings.projectConfigPath, nil
		}
	}
	if settings.userConfigPath != "" {
		return settings.userConfigPath, nil
	}
	return defaultUserConfigPath()
}
