package config

import (
	"strings"
	"time"

	"github.com/rayking12/celo-simple-donation/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Chain  ChainConfig  `mapstructure:"chain"`
	Task   TaskConfig   `mapstructure:"task"`
	Pool   PoolConfig   `mapstructure:"pool"`
	Notify NotifyConfig `mapstructure:"notify"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainType    string         `mapstructure:"chain_type"`    // 链类型 (celo, ethereum, memory, ...)
	ChainId      int64          `mapstructure:"chain_id"`      // 链ID
	RpcUrl       string         `mapstructure:"rpc_url"`       // RPC节点URL
	PrivateKey   string         `mapstructure:"private_key"`   // 签名私钥，为空时只读
	Symbol       string         `mapstructure:"symbol"`        // 原生代币符号
	DialAttempts int            `mapstructure:"dial_attempts"` // 连接重试次数
	TxTimeout    int            `mapstructure:"tx_timeout"`    // 等待交易回执的秒数
	Contract     ContractConfig `mapstructure:"contract"`      // 捐赠合约
}

// ContractConfig 捐赠合约配置
type ContractConfig struct {
	Address string `mapstructure:"address"`  // 合约地址
	ABIPath string `mapstructure:"abi_path"` // ABI文件路径，为空时使用内置ABI
}

// TxWait 返回等待交易确认的时长
func (c ChainConfig) TxWait() time.Duration {
	return time.Duration(c.TxTimeout) * time.Second
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 区块轮询间隔（秒）
}

type PoolConfig struct {
	Size int `mapstructure:"size"` // 写操作协程池大小
}

type NotifyConfig struct {
	Duration int `mapstructure:"duration"` // 通知展示时长（毫秒）
	History  int `mapstructure:"history"`  // 保留的最近通知数量
}

// DisplayDuration 返回通知展示时长
func (n NotifyConfig) DisplayDuration() time.Duration {
	return time.Duration(n.Duration) * time.Millisecond
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// SetDefaults 注册所有配置项的默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("chain.chain_type", "celo")
	v.SetDefault("chain.chain_id", 44787)
	v.SetDefault("chain.rpc_url", "https://alfajores-forno.celo-testnet.org")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.symbol", "CELO")
	v.SetDefault("chain.dial_attempts", 3)
	v.SetDefault("chain.tx_timeout", 120)
	v.SetDefault("chain.contract.address", "0x26f04253AADB78789833De8B2444929781cB85F7")
	v.SetDefault("chain.contract.abi_path", "")
	v.SetDefault("task.interval", 5)
	v.SetDefault("pool.size", 16)
	v.SetDefault("notify.duration", 3000)
	v.SetDefault("notify.history", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 加载配置
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/donation")

	SetDefaults(v)

	// 自动读取环境变量, 如 CHAIN_PRIVATE_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	cfg, err := Decode(v)
	if err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return cfg
}

// Decode 将viper中的配置解析为Config
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
