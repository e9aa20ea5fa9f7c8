package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ストアのドライバー名です。
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// 通知のドライバー名です。
const (
	NotifierDriverLog   = "log"
	NotifierDriverSMTP  = "smtp"
	NotifierDriverRedis = "redis"
	NotifierDriverKafka = "kafka"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Notifier NotifierConfig `yaml:"notifier"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig は gRPC サーバーと管理用 HTTP サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// AdminAddr が空の場合、管理用 HTTP サーバーは起動しません。
	AdminAddr string `yaml:"admin_addr"`
}

// StoreConfig はレコードストアの選択です。
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// RegistryConfig は取得元レジストリと鮮度管理に関する設定です。
type RegistryConfig struct {
	Source    string            `yaml:"source"`
	UserAgent string            `yaml:"user_agent"`
	BaseURLs  map[string]string `yaml:"base_urls"`
	// SweepOnStart が true の場合、起動直後に一度スイープします。
	SweepOnStart bool `yaml:"sweep_on_start"`

	RequestDelay       time.Duration `yaml:"-"`
	RequestTimeout     time.Duration `yaml:"-"`
	StalenessThreshold time.Duration `yaml:"-"`
	ReadMaxAge         time.Duration `yaml:"-"`
	SweepInterval      time.Duration `yaml:"-"`
	SweepItemTimeout   time.Duration `yaml:"-"`

	RequestDelayRaw       *string `yaml:"request_delay"`
	RequestTimeoutRaw     string  `yaml:"request_timeout"`
	StalenessThresholdRaw string  `yaml:"staleness_threshold"`
	ReadMaxAgeRaw         string  `yaml:"read_max_age"`
	SweepIntervalRaw      string  `yaml:"sweep_interval"`
	SweepItemTimeoutRaw   *string `yaml:"sweep_item_timeout"`
}

// NotifierConfig は購読者への通知手段の設定です。
type NotifierConfig struct {
	Driver string      `yaml:"driver"`
	SMTP   SMTPConfig  `yaml:"smtp"`
	Redis  RedisConfig `yaml:"redis"`
	Kafka  KafkaConfig `yaml:"kafka"`
}

// SMTPConfig はメール送信の設定です。
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Addr は host:port を返します。
func (s SMTPConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// RedisConfig は Redis Pub/Sub への通知の設定です。
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// KafkaConfig は Kafka トピックへの通知の設定です。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// EffectivePath は flag、CONFIG_PATH、既定値の順で設定ファイルのパスを決定します。
func EffectivePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	switch c.Store.Driver {
	case "":
		c.Store.Driver = StoreDriverPostgres
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("config: store.driver %q is not supported", c.Store.Driver)
	}

	if c.Store.Driver == StoreDriverPostgres {
		if err := c.Database.validateAndNormalize(); err != nil {
			return err
		}
	}

	if err := c.Registry.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Notifier.validateAndNormalize(); err != nil {
		return err
	}
	return c.Log.validateAndNormalize()
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (r *RegistryConfig) validateAndNormalize() error {
	if r.Source == "" {
		r.Source = "youcontrol"
	}

	// request_delay と sweep_item_timeout は 0 を有効な値として扱うため、未指定と区別します。
	optional := []struct {
		name string
		raw  *string
		def  time.Duration
		dst  *time.Duration
	}{
		{"request_delay", r.RequestDelayRaw, 2 * time.Second, &r.RequestDelay},
		{"sweep_item_timeout", r.SweepItemTimeoutRaw, 30 * time.Second, &r.SweepItemTimeout},
	}
	for _, d := range optional {
		*d.dst = d.def
		if d.raw == nil {
			continue
		}
		v, err := parseDurationAllowEmpty(*d.raw)
		if err != nil {
			return fmt.Errorf("config: registry.%s: %w", d.name, err)
		}
		if v < 0 {
			return fmt.Errorf("config: registry.%s must not be negative", d.name)
		}
		*d.dst = v
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"request_timeout", r.RequestTimeoutRaw, 15 * time.Second, &r.RequestTimeout},
		{"staleness_threshold", r.StalenessThresholdRaw, 24 * time.Hour, &r.StalenessThreshold},
		{"read_max_age", r.ReadMaxAgeRaw, 24 * time.Hour, &r.ReadMaxAge},
		{"sweep_interval", r.SweepIntervalRaw, 30 * time.Minute, &r.SweepInterval},
	}
	for _, d := range durations {
		v, err := parseDurationAllowEmpty(d.raw)
		if err != nil {
			return fmt.Errorf("config: registry.%s: %w", d.name, err)
		}
		if v < 0 {
			return fmt.Errorf("config: registry.%s must not be negative", d.name)
		}
		if v == 0 {
			v = d.def
		}
		*d.dst = v
	}

	for name, tmpl := range r.BaseURLs {
		if !strings.Contains(tmpl, "{code}") {
			return fmt.Errorf("config: registry.base_urls.%s must contain {code}", name)
		}
	}

	return nil
}

func (n *NotifierConfig) validateAndNormalize() error {
	switch n.Driver {
	case "":
		n.Driver = NotifierDriverLog
	case NotifierDriverLog:
	case NotifierDriverSMTP:
		if n.SMTP.Host == "" || n.SMTP.Port == 0 {
			return fmt.Errorf("config: notifier.smtp.host and notifier.smtp.port must be set")
		}
		if n.SMTP.From == "" {
			return fmt.Errorf("config: notifier.smtp.from must be set")
		}
	case NotifierDriverRedis:
		if n.Redis.URL == "" {
			return fmt.Errorf("config: notifier.redis.url must be set")
		}
		if n.Redis.Channel == "" {
			n.Redis.Channel = "company-updates"
		}
	case NotifierDriverKafka:
		if len(n.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: notifier.kafka.brokers must be set")
		}
		if n.Kafka.Topic == "" {
			n.Kafka.Topic = "company-updates"
		}
	default:
		return fmt.Errorf("config: notifier.driver %q is not supported", n.Driver)
	}
	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is not supported", l.Format)
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
