package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  mode: test
database:
  driver: postgres
  host: db
  port: 5432
  user: pharmatech
  password: secret
  dbname: pharmatech
jwt:
  secret: test-secret
payment:
  provider: vnpay
  timeout: 3s
  vnpay:
    tmn_code: DEMO
    hash_secret: abc
`

func chdirWithConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte(content), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	chdirWithConfig(t, sampleYAML)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.True(t, cfg.Payment.VNPay.Enabled())
	assert.Equal(t, 5, cfg.Order.CodeAttempts, "默认值")
	assert.Equal(t, 1024, cfg.EventBus.QueueSize)
	assert.Equal(t, "host=db port=5432 user=pharmatech password=secret dbname=pharmatech sslmode=disable", cfg.Database.DSN())
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirWithConfig(t, sampleYAML)
	t.Setenv("PHARMATECH_DATABASE_PASSWORD", "from-env")
	t.Setenv("PHARMATECH_ORDER_CODE_ATTEMPTS", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, 9, cfg.Order.CodeAttempts)
}

func TestDSN_MySQL(t *testing.T) {
	d := DatabaseConfig{Driver: DriverMySQL, User: "root", Password: "pw", Host: "127.0.0.1", Port: 3306, DBName: "pharmatech", Charset: "utf8mb4", ParseTime: true, Loc: "Asia/Ho_Chi_Minh"}
	assert.Equal(t, "root:pw@tcp(127.0.0.1:3306)/pharmatech?charset=utf8mb4&parseTime=true&loc=Asia%2FHo_Chi_Minh", d.DSN())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, Mode: "debug"},
			Database: DatabaseConfig{Driver: DriverMemory},
			JWT:      JWTConfig{Secret: "s"},
			Payment:  PaymentConfig{Provider: "sandbox", Timeout: time.Second},
		}
	}
	require.NoError(t, validate(valid()))

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"端口非法", func(c *Config) { c.Server.Port = 0 }},
		{"未知驱动", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"缺少JWT密钥", func(c *Config) { c.JWT.Secret = "" }},
		{"生产环境使用sandbox", func(c *Config) { c.Server.Mode = "release" }},
		{"stripe缺少密钥", func(c *Config) { c.Payment.Provider = "stripe" }},
		{"未知渠道", func(c *Config) { c.Payment.Provider = "paypal" }},
		{"超时为0", func(c *Config) { c.Payment.Timeout = 0 }},
		{"RabbitMQ缺少地址", func(c *Config) { c.RabbitMQ.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			assert.Error(t, validate(c))
		})
	}
}
