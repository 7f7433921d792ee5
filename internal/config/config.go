package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
	"time"
)

type Config struct {
	Env      string `yaml:"env" env-default:"local"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"FunnelRouterBot"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	Meta struct {
		VerifyToken        string        `yaml:"verify_token" env:"META_VERIFY_TOKEN" env-default:""`
		AppSecretName      string        `yaml:"app_secret_name" env-default:"meta-app-secret"`
		WhatsAppApiURL     string        `yaml:"whatsapp_api_url" env-default:"https://graph.facebook.com/v19.0"`
		InstagramApiURL    string        `yaml:"instagram_api_url" env-default:"https://graph.instagram.com/v24.0"`
		DeliveryTimeout    time.Duration `yaml:"delivery_timeout" env-default:"10s"`
		CredentialTTL      time.Duration `yaml:"credential_ttl" env-default:"15m"`
		DeliveryRatePerSec float64       `yaml:"delivery_rate" env-default:"20"`
	} `yaml:"meta"`
	GCP struct {
		ProjectID       string `yaml:"project_id" env:"GCP_PROJECT" env-default:""`
		CredentialsFile string `yaml:"credentials_file" env-default:""`
	} `yaml:"gcp"`
	Queue struct {
		Driver         string        `yaml:"driver" env-default:"memory"`
		Topic          string        `yaml:"topic" env-default:"wpp-inbound-topic"`
		Subscription   string        `yaml:"subscription" env-default:"wpp-inbound-sub"`
		Delivery       string        `yaml:"delivery" env-default:"pull"`
		PushToken      string        `yaml:"push_token" env-default:""`
		PushAudience   string        `yaml:"push_audience" env-default:""`
		PushAccount    string        `yaml:"push_service_account" env-default:""`
		Workers        int           `yaml:"workers" env-default:"8"`
		MaxAttempts    int           `yaml:"max_attempts" env-default:"5"`
		Lease          time.Duration `yaml:"lease" env-default:"60s"`
		BackoffInitial time.Duration `yaml:"backoff_initial" env-default:"1s"`
		BackoffMax     time.Duration `yaml:"backoff_max" env-default:"60s"`
		PublishTimeout time.Duration `yaml:"publish_timeout" env-default:"5s"`
	} `yaml:"queue"`
	Secrets struct {
		Driver  string            `yaml:"driver" env-default:"static"`
		Timeout time.Duration     `yaml:"timeout" env-default:"5s"`
		Values  map[string]string `yaml:"values"`
	} `yaml:"secrets"`
	Mongo struct {
		Enabled  bool          `yaml:"enabled" env-default:"false"`
		Host     string        `yaml:"host" env-default:"127.0.0.1"`
		Port     string        `yaml:"port" env-default:"27017"`
		User     string        `yaml:"user" env-default:"admin"`
		Password string        `yaml:"password" env-default:"pass"`
		Database string        `yaml:"database" env-default:"funnelrouter"`
		Timeout  time.Duration `yaml:"timeout" env-default:"5s"`
	} `yaml:"mongo"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Addr     string `yaml:"addr" env-default:"127.0.0.1:6379"`
		Password string `yaml:"password" env-default:""`
		DB       int    `yaml:"db" env-default:"0"`
		Prefix   string `yaml:"prefix" env-default:"funnelrouter:msg:"`
	} `yaml:"redis"`
	Idempotency struct {
		Retention time.Duration `yaml:"retention" env-default:"24h"`
		MaxKeys   int           `yaml:"max_keys" env-default:"100000"`
	} `yaml:"idempotency"`
	Agent struct {
		Driver       string        `yaml:"driver" env-default:"dialogflow"`
		Timeout      time.Duration `yaml:"timeout" env-default:"15s"`
		RatePerSec   float64       `yaml:"rate" env-default:"10"`
		LanguageCode string        `yaml:"language_code" env-default:"pt-br"`
	} `yaml:"agent"`
	Dialogflow struct {
		Location string `yaml:"location" env:"DIALOGFLOW_LOCATION" env-default:"us-central1"`
		AgentID  string `yaml:"agent_id" env:"DIALOGFLOW_AGENT_ID" env-default:""`
		Endpoint string `yaml:"endpoint" env-default:""`
	} `yaml:"dialogflow"`
	OpenAI struct {
		ApiKey  string `yaml:"api_key" env-default:""`
		Model   string `yaml:"model" env-default:"gpt-4o-mini"`
		BaseURL string `yaml:"base_url" env-default:""`
		History int    `yaml:"history" env-default:"20"`
	} `yaml:"openai"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port   string `yaml:"port" env:"PORT" env-default:"8080"`
		ApiKey string `yaml:"key" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance, err = Load(path)
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("%s; %s", err, desc)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// PushEnabled reports whether Pub/Sub delivers to the /pubsub endpoint instead of
// being pulled.
func (c *Config) PushEnabled() bool {
	return c.Queue.Driver == "pubsub" && c.Queue.Delivery == "push"
}

func (c *Config) Validate() error {
	if c.Queue.Delivery != "pull" && c.Queue.Delivery != "push" {
		return fmt.Errorf("queue: unknown delivery %q", c.Queue.Delivery)
	}
	if c.PushEnabled() && c.Queue.PushToken == "" && c.Queue.PushAudience == "" {
		return fmt.Errorf("queue: push delivery requires push_token or push_audience")
	}
	if c.Queue.PushAccount != "" && c.Queue.PushAudience == "" {
		return fmt.Errorf("queue: push_service_account requires push_audience")
	}
	return nil
}
