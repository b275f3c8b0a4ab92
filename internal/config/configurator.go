package config

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"os"
	"strings"
)

const (
	CONFIG_FILE              = "CONFIG_FILE"
	APP_PORT                 = "APP_PORT"
	APP_HOST                 = "APP_HOST"
	PORT                     = "PORT"
	DATABASE_URL             = "DATABASE_URL"
	SQLITE_PATH              = "SQLITE_PATH"
	DB_CONN_MAX_LIFE_MINUTES = "DB_CONN_MAX_LIFE_MINUTES"
	DB_MAX_OPEN_CONNS        = "DB_MAX_OPEN_CONNS"
	DB_MIN_CONNS             = "DB_MIN_CONNS"
	ADMIN_PASSWORD           = "ADMIN_PASSWORD"
	UPLOAD_DIR               = "UPLOAD_DIR"
	UPLOAD_MAX_MB            = "UPLOAD_MAX_MB"
	LOG_FILE                 = "LOG_FILE"
	LOG_LEVEL                = "LOG_LEVEL"
	JAG_DSN                  = "JAG_DSN"
	MAIL_HOST                = "MAIL_HOST"
	MAIL_PORT                = "MAIL_PORT"
	MAIL_SMTP_PORT           = "MAIL_SMTP_PORT"
	MAIL_USERNAME            = "MAIL_USERNAME"
	MAIL_PASSWORD            = "MAIL_PASSWORD"
	MAIL_COUNT_OF_MAILS      = "MAIL_COUNT_OF_MAILS"
)

const (
	BACKEND_POSTGRES = "postgres"
	BACKEND_SQLITE   = "sqlite"
)

var errMailboxMismatch = errors.New("MAIL_HOST, MAIL_USERNAME and MAIL_PASSWORD must list the same number of mailboxes")

type Entity struct {
	App    Application
	DB     Database
	Admin  Admin
	Upload Upload
	Log    Log
	Jag    Jaeger
	Mail   Mail
}

type Application struct {
	Port string `validate:"required,numeric"`
	Host string
}

// Database holds both backends' settings. Which one is used is decided by URL alone.
type Database struct {
	URL          string
	SqlitePath   string `validate:"required"`
	ConnLifeTime int    `validate:"gte=0"`
	MaxOpenConns int32  `validate:"gte=0"`
	MinConns     int32  `validate:"gte=0"`
}

type Admin struct {
	Password string `validate:"required"`
}

type Upload struct {
	Dir       string `validate:"required"`
	MaxSizeMB int64  `validate:"gt=0"`
}

type Log struct {
	File  string
	Level string `validate:"omitempty,oneof=debug info warn error"`
}

type Jaeger struct {
	Dsn string
}

type Mail struct {
	Hostname     []string
	Port         string
	SmtpPort     string
	Username     []string
	Password     []string
	CountOfMails uint32
}

// Backend reports which relational store the process must use.
func (e *Entity) Backend() string {
	if e.DB.URL != "" {
		return BACKEND_POSTGRES
	}
	return BACKEND_SQLITE
}

// Enabled is true when at least one mailbox is configured.
func (m Mail) Enabled() bool {
	return len(m.Hostname) > 0
}

func NewConfig() (*Entity, error) {
	return Load(viper.GetViper())
}

// Load reads the optional CONFIG_FILE first, environment variables override its values.
func Load(v *viper.Viper) (*Entity, error) {
	setDefaults(v)

	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	if path, ok := os.LookupEnv(CONFIG_FILE); ok && path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("NewConfig failed: %w", err)
		}
	}

	port := v.GetString(APP_PORT)
	if port == "" {
		port = v.GetString(PORT)
	}

	config := &Entity{
		App: Application{
			Port: port,
			Host: v.GetString(APP_HOST),
		},
		DB: Database{
			URL:          v.GetString(DATABASE_URL),
			SqlitePath:   v.GetString(SQLITE_PATH),
			ConnLifeTime: v.GetInt(DB_CONN_MAX_LIFE_MINUTES),
			MaxOpenConns: v.GetInt32(DB_MAX_OPEN_CONNS),
			MinConns:     v.GetInt32(DB_MIN_CONNS),
		},
		Admin:  Admin{Password: v.GetString(ADMIN_PASSWORD)},
		Upload: Upload{Dir: v.GetString(UPLOAD_DIR), MaxSizeMB: v.GetInt64(UPLOAD_MAX_MB)},
		Log:    Log{File: v.GetString(LOG_FILE), Level: strings.ToLower(v.GetString(LOG_LEVEL))},
		Jag:    Jaeger{v.GetString(JAG_DSN)},
	}

	mail, err := mailConfig(v)
	if err != nil {
		return nil, fmt.Errorf("NewConfig failed: %w", err)
	}
	config.Mail = *mail

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("NewConfig failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(APP_HOST, "0.0.0.0")
	v.SetDefault(PORT, "3001")
	v.SetDefault(SQLITE_PATH, "afemec.db")
	v.SetDefault(DB_CONN_MAX_LIFE_MINUTES, 30)
	v.SetDefault(DB_MAX_OPEN_CONNS, 20)
	v.SetDefault(DB_MIN_CONNS, 2)
	v.SetDefault(ADMIN_PASSWORD, "admin123")
	v.SetDefault(UPLOAD_DIR, "UPLOAD")
	v.SetDefault(UPLOAD_MAX_MB, 10)
	v.SetDefault(LOG_FILE, "./logs/logs.txt")
	v.SetDefault(LOG_LEVEL, "info")
	v.SetDefault(MAIL_PORT, "993")
	v.SetDefault(MAIL_SMTP_PORT, "587")
	v.SetDefault(MAIL_COUNT_OF_MAILS, 10)
}

// Mailboxes are given as comma separated lists, one entry per mailbox.
func mailConfig(v *viper.Viper) (*Mail, error) {
	mail := &Mail{
		Port:         v.GetString(MAIL_PORT),
		SmtpPort:     v.GetString(MAIL_SMTP_PORT),
		CountOfMails: v.GetUint32(MAIL_COUNT_OF_MAILS),
	}

	raw := v.GetString(MAIL_HOST)
	if raw == "" {
		return mail, nil
	}

	mail.Hostname = splitList(raw)
	mail.Username = splitList(v.GetString(MAIL_USERNAME))
	mail.Password = splitList(v.GetString(MAIL_PASSWORD))

	if len(mail.Hostname) != len(mail.Username) || len(mail.Hostname) != len(mail.Password) {
		return nil, errMailboxMismatch
	}

	return mail, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
