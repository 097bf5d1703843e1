package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Chain   ChainConfig
	Webhook WebhookConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ChainConfig struct {
	RPCURL         string `mapstructure:"rpc_url"`
	ChainID        int64  `mapstructure:"chain_id"`
	OperatorKey    string `mapstructure:"operator_key"`
	GatewayAddress string `mapstructure:"gateway_address"`
	TransferProxy  string `mapstructure:"transfer_proxy"`
	TokenFactory   string `mapstructure:"token_factory"`
}

// WebhookConfig is optional: when URL is empty the event relay is not
// started and notifications stay on the Redis event list.
type WebhookConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":           "PORT",
		"redis.addr":            "REDIS_ADDR",
		"redis.password":        "REDIS_PASSWORD",
		"chain.rpc_url":         "RPC_URL",
		"chain.chain_id":        "CHAIN_ID",
		"chain.operator_key":    "OPERATOR_KEY",
		"chain.gateway_address": "GATEWAY_ADDRESS",
		"chain.transfer_proxy":  "TRANSFER_PROXY",
		"chain.token_factory":   "TOKEN_FACTORY",
		"webhook.url":           "WEBHOOK_URL",
		"webhook.token":         "WEBHOOK_TOKEN",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Chain.RPCURL, "RPC_URL"},
		{c.Chain.OperatorKey, "OPERATOR_KEY"},
		{c.Chain.GatewayAddress, "GATEWAY_ADDRESS"},
		{c.Chain.TransferProxy, "TRANSFER_PROXY"},
		{c.Chain.TokenFactory, "TOKEN_FACTORY"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	return nil
}
