package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	TransportWebhook = "webhook"
	TransportSQS     = "sqs"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	Business struct {
		Name            string   `yaml:"name" env-default:"Frappé Bar"`
		MenuURL         string   `yaml:"menu_url" env-default:""`
		Hours           string   `yaml:"hours" env-default:"Lunes a domingo de 12:00 a 21:00"`
		BankDetails     string   `yaml:"bank_details" env:"BANK_DETAILS" env-default:""`
		RequestLocation bool     `yaml:"request_location" env-default:"true"`
		Admins          []string `yaml:"admins" env:"ADMIN_NUMBERS" env-separator:","`
	} `yaml:"business"`
	WhatsApp struct {
		AccessToken   string        `yaml:"access_token" env:"WHATSAPP_ACCESS_TOKEN" env-default:""`
		VerifyToken   string        `yaml:"verify_token" env:"WHATSAPP_VERIFY_TOKEN" env-default:""`
		AppSecret     string        `yaml:"app_secret" env:"WHATSAPP_APP_SECRET" env-default:""`
		PhoneNumberID string        `yaml:"phone_number_id" env:"WHATSAPP_PHONE_NUMBER_ID" env-default:""`
		ApiURL        string        `yaml:"api_url" env-default:"https://graph.facebook.com/v21.0"`
		Timeout       time.Duration `yaml:"timeout" env-default:"5s"`
	} `yaml:"whatsapp"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env-default:"0"`
		Prefix   string `yaml:"prefix" env-default:"conversation:"`
	} `yaml:"redis"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:"pass"`
		Database string `yaml:"database" env-default:"frappebot"`
	} `yaml:"mongo"`
	Workflow struct {
		Transport  string        `yaml:"transport" env-default:"webhook"`
		WebhookURL string        `yaml:"webhook_url" env:"N8N_WEBHOOK_URL" env-default:""`
		QueueURL   string        `yaml:"queue_url" env:"WORKFLOW_QUEUE_URL" env-default:""`
		Region     string        `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
		Timeout    time.Duration `yaml:"timeout" env-default:"5s"`
	} `yaml:"workflow"`
	OpenAI struct {
		ApiKey       string `yaml:"api_key" env:"OPENAI_API_KEY" env-default:""`
		Model        string `yaml:"model" env-default:"gpt-4o-mini"`
		SystemPrompt string `yaml:"system_prompt" env-default:""`
	} `yaml:"openai"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"FrappeBotAlerts"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9100"`
		ApiKey string `yaml:"key" env:"API_KEY" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

// MustLoad reads the yaml file once; a local .env, when present, feeds the env overrides.
func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		_ = godotenv.Load(".env")
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
		if err = instance.validate(); err != nil {
			log.Fatal(err)
		}
	})
	return instance
}

func (c *Config) validate() error {
	switch c.Workflow.Transport {
	case TransportWebhook, TransportSQS:
	default:
		return fmt.Errorf("unknown workflow transport %q", c.Workflow.Transport)
	}
	if c.Workflow.Transport == TransportSQS && c.Workflow.QueueURL == "" {
		return fmt.Errorf("workflow queue_url is required for sqs transport")
	}
	if c.WhatsApp.PhoneNumberID == "" || c.WhatsApp.AccessToken == "" {
		return fmt.Errorf("whatsapp phone_number_id and access_token are required")
	}
	return nil
}
