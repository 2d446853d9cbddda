package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Providers accepted by COMPLETION_PROVIDER.
const (
	ProviderOpenRouter = "openrouter"
	ProviderArk        = "ark"
)

// DefaultSessionSecret is used when SESSION_SECRET is unset.
const DefaultSessionSecret = "default_secret"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Auth    AuthConfig
	AI      AIConfig
	Chat    ChatConfig
	CORS    CORSConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig(server.Production)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Session: session,
		Auth:    loadAuthConfig(),
		AI:      ai,
		Chat:    ChatConfig{SeedFile: strings.TrimSpace(os.Getenv("CHAT_SEED_FILE"))},
		CORS:    CORSConfig{AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr       string
	Production bool
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	production := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, Production: production}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, Production: production}, nil
}

// SessionConfig 描述会话 cookie 的签名与作用域。
type SessionConfig struct {
	Secret        string
	DefaultSecret bool
	Secure        bool
	MaxAge        time.Duration
}

func loadSessionConfig(production bool) (SessionConfig, error) {
	maxAge := 7 * 24 * time.Hour
	if seconds, err := parseOptionalIntEnv("SESSION_MAX_AGE"); err != nil {
		return SessionConfig{}, err
	} else if seconds != nil && *seconds > 0 {
		maxAge = time.Duration(*seconds) * time.Second
	}

	secret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	return SessionConfig{
		Secret:        getEnvOrDefault("SESSION_SECRET", DefaultSessionSecret),
		DefaultSecret: secret == "",
		Secure:        production,
		MaxAge:        maxAge,
	}, nil
}

// AuthConfig 描述唯一的登录账号。
type AuthConfig struct {
	Email        string
	Password     string
	PasswordHash string
	UserID       string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Email:        getEnvOrDefault("AUTH_EMAIL", "sam@gmail.com"),
		Password:     getEnvOrDefault("AUTH_PASSWORD", "password"),
		PasswordHash: strings.TrimSpace(os.Getenv("AUTH_PASSWORD_HASH")),
		UserID:       getEnvOrDefault("AUTH_USER_ID", "123"),
	}
}

// AIConfig 描述补全服务配置。
type AIConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	SiteURL  string
	SiteName string
	Ark      ArkConfig
}

// ArkConfig 描述火山引擎 Ark 模型配置。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了 OpenRouter 密钥。
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Enabled 表示是否提供了必需的 Ark 密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return chatModel, nil
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", ProviderOpenRouter))
	if provider != ProviderOpenRouter && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid COMPLETION_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider: provider,
		APIKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		Model:    getEnvOrDefault("OPENROUTER_MODEL", "openai/gpt-3.5-turbo"),
		BaseURL:  getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		SiteURL:  strings.TrimSpace(os.Getenv("OPENROUTER_SITE_URL")),
		SiteName: strings.TrimSpace(os.Getenv("OPENROUTER_SITE_NAME")),
		Ark: ArkConfig{
			APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		},
	}, nil
}

// ChatConfig 描述会话初始数据。
type ChatConfig struct {
	SeedFile string
}

// CORSConfig 描述允许跨域访问的来源。
type CORSConfig struct {
	AllowedOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
