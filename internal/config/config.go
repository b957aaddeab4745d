package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database `envPrefix:"DATABASE_"`
	Redis       Redis    `envPrefix:"REDIS_"`
	Auth        Auth     `envPrefix:"AUTH_"`

	PlanCatalogPath string `env:"PLAN_CATALOG_PATH" envDefault:"plans.yaml"`

	Pterodactyl  Pterodactyl  `envPrefix:"PTERO_"`
	Provisioning Provisioning `envPrefix:"PROVISIONING_"`
	Paypal       Paypal       `envPrefix:"PAYPAL_"`
	BrainTree    Braintree    `envPrefix:"BRAINTREE_"`
	Razorpay     Razorpay     `envPrefix:"RAZORPAY_"`
	Telegram     Telegram     `envPrefix:"TELEGRAM_"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql, postgres
	URL             string        `env:"URL" envDefault:"ptero-billing.db"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

// Redis is optional. An empty Addr disables the distributed order lock.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"JWT_ISSUER"`
}

// Pterodactyl holds the panel application API settings. Leaving PanelURL or APIKey
// empty switches provisioning to simulated mode.
type Pterodactyl struct {
	PanelURL       string            `env:"PANEL_URL"`
	APIKey         string            `env:"API_KEY"`
	OwnerUserID    int64             `env:"OWNER_USER_ID" envDefault:"1"`
	EggID          int64             `env:"EGG_ID" envDefault:"1"`
	DockerImage    string            `env:"DOCKER_IMAGE" envDefault:"quay.io/pterodactyl/core:java"`
	Startup        string            `env:"STARTUP" envDefault:"java -Xms128M -Xmx{{SERVER_MEMORY}}M -jar {{SERVER_JARFILE}}"`
	Environment    map[string]string `env:"ENVIRONMENT" envDefault:"SERVER_JARFILE:server.jar,VANILLA_VERSION:latest"`
	DefaultAllocID int64             `env:"DEFAULT_ALLOCATION" envDefault:"25565"`
	IO             int64             `env:"IO" envDefault:"500"`
}

type Provisioning struct {
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
	StaleClaimGrace time.Duration `env:"STALE_CLAIM_GRACE" envDefault:"2m"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Razorpay struct {
	BaseApiURL string `env:"BASE_API_URL" envDefault:"https://api.razorpay.com"`
	KeyID      string `env:"KEY_ID"`
	KeySecret  string `env:"KEY_SECRET"`
}

type Telegram struct {
	BotToken    string `env:"BOT_TOKEN"`
	AdminChatID int64  `env:"ADMIN_CHAT_ID"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (p Pterodactyl) Configured() bool {
	return p.PanelURL != "" && p.APIKey != ""
}

func (p Paypal) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

func (b Braintree) Configured() bool {
	return b.MerchantID != "" && b.PublicKey != "" && b.PrivateKey != ""
}

func (r Razorpay) Configured() bool {
	return r.KeyID != "" && r.KeySecret != ""
}

func (t Telegram) Configured() bool {
	return t.BotToken != "" && t.AdminChatID != 0
}
