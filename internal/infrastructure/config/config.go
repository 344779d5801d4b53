package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
// 设计说明：使用Viper管理配置，支持YAML文件、环境变量覆盖
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Log            LogConfig            `mapstructure:"log"`
	Payment        PaymentConfig        `mapstructure:"payment"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Order          OrderConfig          `mapstructure:"order"`
	RabbitMQ       RabbitMQConfig       `mapstructure:"rabbitmq"`
	EventBus       EventBusConfig       `mapstructure:"eventbus"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Reconcile      ReconcileConfig      `mapstructure:"reconcile"`
	GRPC           GRPCConfig           `mapstructure:"grpc"`
}

type ServerConfig struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// 存储驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory" // 本地运行，不持久化
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	SSLMode         string        `mapstructure:"sslmode"` // 仅postgres
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN 按驱动生成连接字符串
// mysql：user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
// 注意：loc参数需要URL编码（Asia/Ho_Chi_Minh → Asia%2FHo_Chi_Minh）
// postgres：host=... port=... user=... password=... dbname=... sslmode=disable
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverPostgres {
		sslMode := d.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, sslMode)
	}
	loc := url.QueryEscape(d.Loc)
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, loc)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"` // 关闭时使用进程内实现（单实例）
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 返回Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig 令牌由外部认证服务签发，这里只校验
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`  // debug | info | warn | error
	Format       string `mapstructure:"format"` // console | json
	Output       string `mapstructure:"output"` // stdout | stderr | /path/to/file
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// PaymentConfig 支付渠道
type PaymentConfig struct {
	Provider       string        `mapstructure:"provider"` // 默认渠道：vnpay | momo | stripe | sandbox
	Timeout        time.Duration `mapstructure:"timeout"`  // 单次网关调用超时
	ReconcileAfter time.Duration `mapstructure:"reconcile_after"`
	RefundLockTTL  time.Duration `mapstructure:"refund_lock_ttl"`
	ReturnURL      string        `mapstructure:"return_url"`
	VNPay          VNPayConfig   `mapstructure:"vnpay"`
	MoMo           MoMoConfig    `mapstructure:"momo"`
	Stripe         StripeConfig  `mapstructure:"stripe"`
}

type VNPayConfig struct {
	TmnCode    string `mapstructure:"tmn_code"`
	HashSecret string `mapstructure:"hash_secret"`
	PayURL     string `mapstructure:"pay_url"` // 收银台
	APIURL     string `mapstructure:"api_url"` // querydr / refund
}

// Enabled 配置齐全才启用
func (c VNPayConfig) Enabled() bool { return c.TmnCode != "" && c.HashSecret != "" }

type MoMoConfig struct {
	PartnerCode string `mapstructure:"partner_code"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Endpoint    string `mapstructure:"endpoint"`
	IPNURL      string `mapstructure:"ipn_url"`
}

// Enabled 配置齐全才启用
func (c MoMoConfig) Enabled() bool {
	return c.PartnerCode != "" && c.AccessKey != "" && c.SecretKey != ""
}

type StripeConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	SuccessURL string `mapstructure:"success_url"`
	CancelURL  string `mapstructure:"cancel_url"`
	Currency   string `mapstructure:"currency"`
}

// Enabled 配置了密钥才启用
func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

// CircuitBreakerConfig 每个网关一个熔断器
type CircuitBreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type OrderConfig struct {
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	CodeAttempts    int           `mapstructure:"code_attempts"`
	CheckoutTimeout time.Duration `mapstructure:"checkout_timeout"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type EventBusConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

// ReconcileConfig 待确认支付对账
type ReconcileConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port"` // 0表示不启动
}

// Load 加载配置文件
// 支持：
// 1. 默认加载config/config.yaml
// 2. 通过环境变量PHARMATECH_ENV指定环境（如config.prod.yaml）
// 3. 环境变量覆盖（如PHARMATECH_DATABASE_PASSWORD）
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if env := os.Getenv("PHARMATECH_ENV"); env != "" {
		v.SetConfigName("config." + env)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 环境变量绑定（PHARMATECH_DATABASE_PASSWORD → database.password）
	v.SetEnvPrefix("PHARMATECH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "pharmatech")
	v.SetDefault("server.env", "dev")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("payment.provider", "sandbox")
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("order.lock_timeout", 5*time.Second)
	v.SetDefault("order.code_attempts", 5)
	v.SetDefault("order.checkout_timeout", 30*time.Second)
	v.SetDefault("order.idempotency_ttl", 24*time.Hour)
	v.SetDefault("rabbitmq.exchange", "pharmatech.events")
	v.SetDefault("eventbus.queue_size", 1024)
	v.SetDefault("eventbus.concurrency", 8)
	v.SetDefault("eventbus.handler_timeout", 30*time.Second)
	v.SetDefault("reconcile.interval", 30*time.Second)
	v.SetDefault("reconcile.batch_size", 50)
	v.SetDefault("reconcile.retry_delay", time.Minute)
	v.SetDefault("tracing.sample_ratio", 0.1)
}

// validate 配置校验
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务端口: %d", cfg.Server.Port)
	}

	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", cfg.Database.Driver)
	}

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("必须配置jwt.secret")
	}
	if cfg.JWT.Secret == "your-secret-key-change-in-production" && cfg.Server.Mode == "release" {
		return fmt.Errorf("生产环境必须修改JWT密钥")
	}

	switch cfg.Payment.Provider {
	case "sandbox":
		if cfg.Server.Mode == "release" {
			return fmt.Errorf("生产环境不能使用sandbox支付渠道")
		}
	case "vnpay":
		if !cfg.Payment.VNPay.Enabled() {
			return fmt.Errorf("默认渠道vnpay缺少tmn_code或hash_secret")
		}
	case "momo":
		if !cfg.Payment.MoMo.Enabled() {
			return fmt.Errorf("默认渠道momo缺少partner_code、access_key或secret_key")
		}
	case "stripe":
		if !cfg.Payment.Stripe.Enabled() {
			return fmt.Errorf("默认渠道stripe缺少secret_key")
		}
	default:
		return fmt.Errorf("不支持的支付渠道: %s", cfg.Payment.Provider)
	}

	if cfg.Payment.Timeout <= 0 {
		return fmt.Errorf("payment.timeout必须大于0")
	}
	if cfg.RabbitMQ.Enabled && cfg.RabbitMQ.URL == "" {
		return fmt.Errorf("启用RabbitMQ时必须配置rabbitmq.url")
	}

	return nil
}
