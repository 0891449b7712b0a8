package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".stockcount"
	deviceIDFile         = "device_id"
)

type Config struct {
	Env           string
	ServerAddress string
	EnableTLS     bool
	LogLevel      string

	ConfigDir string
	DataPath  string
	TokenPath string
	LogPath   string

	DeviceID   string
	DeviceName string
	SessionID  string
	AutoSend   bool

	SyncInterval   time.Duration
	HealthInterval time.Duration
	RequestTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration

	BLEScanTimeout time.Duration
	BLEChunkSize   int
	BLEChunkDelay  time.Duration

	LANPorts         []int
	LANProbeTimeout  time.Duration
	LANListenAddress string

	ConnectionRequestID string
}

// MustLoad загружает конфигурацию клиента и завершает процесс при ошибке
func MustLoad(configFile string) *Config {
	cfg, err := Load(configFile)
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, переменные окружения и необязательный config.yaml из каталога конфигурации.
// Переменные окружения важнее файла.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	if configFile == "" {
		configFile = filepath.Join(configDir, "config.yaml")
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("ошибка чтения %s: %w", configFile, err)
		}
	}

	dataPath := v.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "stockcount.db")
	}

	deviceID := v.GetString("DEVICE_ID")
	if deviceID == "" {
		deviceID, err = loadDeviceID(configDir)
		if err != nil {
			return nil, err
		}
	}

	deviceName := v.GetString("DEVICE_NAME")
	if deviceName == "" {
		deviceName, _ = os.Hostname()
	}

	ports, err := lanPorts(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:           v.GetString("APP_ENV"),
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		EnableTLS:     v.GetBool("ENABLE_TLS"),
		LogLevel:      v.GetString("LOG_LEVEL"),

		ConfigDir: configDir,
		DataPath:  dataPath,
		TokenPath: filepath.Join(configDir, "token"),
		LogPath:   filepath.Join(configDir, "stockcount.log"),

		DeviceID:   deviceID,
		DeviceName: deviceName,
		SessionID:  v.GetString("SESSION_ID"),
		AutoSend:   v.GetBool("AUTO_SEND"),

		SyncInterval:   seconds(v, "SYNC_INTERVAL_SECONDS"),
		HealthInterval: seconds(v, "HEALTH_INTERVAL_SECONDS"),
		RequestTimeout: seconds(v, "REQUEST_TIMEOUT_SECONDS"),
		BackoffBase:    seconds(v, "BACKOFF_BASE_SECONDS"),
		BackoffMax:     seconds(v, "BACKOFF_MAX_SECONDS"),

		BLEScanTimeout: seconds(v, "BLE_SCAN_SECONDS"),
		BLEChunkSize:   v.GetInt("BLE_CHUNK_SIZE"),
		BLEChunkDelay:  time.Duration(v.GetInt("BLE_CHUNK_DELAY_MS")) * time.Millisecond,

		LANPorts:         ports,
		LANProbeTimeout:  time.Duration(v.GetInt("LAN_PROBE_TIMEOUT_MS")) * time.Millisecond,
		LANListenAddress: v.GetString("LAN_LISTEN_ADDRESS"),

		ConnectionRequestID: v.GetString("CONNECTION_REQUEST_ID"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("AUTO_SEND", true)
	v.SetDefault("SYNC_INTERVAL_SECONDS", 30)
	v.SetDefault("HEALTH_INTERVAL_SECONDS", 15)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 15)
	v.SetDefault("BACKOFF_BASE_SECONDS", 5)
	v.SetDefault("BACKOFF_MAX_SECONDS", 300)
	v.SetDefault("BLE_SCAN_SECONDS", 30)
	v.SetDefault("BLE_CHUNK_SIZE", 5)
	v.SetDefault("BLE_CHUNK_DELAY_MS", 100)
	v.SetDefault("LAN_PORTS", "3000,3001,8080,5000")
	v.SetDefault("LAN_PROBE_TIMEOUT_MS", 800)
	v.SetDefault("LAN_LISTEN_ADDRESS", ":3001")
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

// lanPorts принимает и строку "3000,3001" из окружения, и список из config.yaml
func lanPorts(v *viper.Viper) ([]int, error) {
	raw, ok := v.Get("LAN_PORTS").(string)
	if !ok {
		return v.GetIntSlice("LAN_PORTS"), nil
	}
	var ports []int
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("неверный порт в lan_ports: %q", p)
		}
		ports = append(ports, n)
	}
	return ports, nil
}

func loadDeviceID(configDir string) (string, error) {
	path := filepath.Join(configDir, deviceIDFile)
	data, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(data)) != "" {
		return strings.TrimSpace(string(data)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("ошибка чтения идентификатора устройства: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", fmt.Errorf("ошибка сохранения идентификатора устройства: %w", err)
	}
	return id, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.BLEChunkSize <= 0 {
		return fmt.Errorf("ble_chunk_size должен быть больше нуля")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть больше нуля")
	}
	if len(c.LANPorts) == 0 {
		return fmt.Errorf("lan_ports не может быть пустым")
	}
	return nil
}

// BaseURL адрес сервера со схемой
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
