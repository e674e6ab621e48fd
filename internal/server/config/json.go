package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/flagx"
	"github.com/dmitrijs2005/petmarket/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from "zero" so a partial file only
// overrides what it names.
type JsonConfig struct {
	HTTPAddr    *string `json:"http_addr"`
	DatabaseDSN *string `json:"database_dsn"`

	AccessTokenSecret       *string `json:"access_token_secret"`
	RefreshTokenSecret      *string `json:"refresh_token_secret"`
	VerificationTokenSecret *string `json:"verification_token_secret"`
	ResetTokenSecret        *string `json:"reset_token_secret"`

	AccessTokenValidityDuration       *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration      *timex.Duration `json:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration *timex.Duration `json:"verification_token_validity_duration"`
	ResetTokenValidityDuration        *timex.Duration `json:"reset_token_validity_duration"`

	RedisAddr     *string `json:"redis_addr"`
	RedisPassword *string `json:"redis_password"`
	RedisDB       *int    `json:"redis_db"`

	S3RootUser     *string `json:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`

	SMTPHost     *string `json:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port"`
	SMTPUsername *string `json:"smtp_username"`
	SMTPPassword *string `json:"smtp_password"`
	MailFrom     *string `json:"mail_from"`

	NATSURL *string `json:"nats_url"`

	PublicURL      *string `json:"public_url"`
	FrontendURL    *string `json:"frontend_url"`
	CookieDomain   *string `json:"cookie_domain"`
	Environment    *string `json:"environment"`
	Logger         *string `json:"logger"`
	MaxUploadBytes *int64  `json:"max_upload_bytes"`
}

// parseJson loads the file named by -c / -config in args into config.
// Nothing happens when no file is named; an unreadable or malformed file
// panics, because the server must not start half-configured.
func parseJson(config *Config, args []string) {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.VerificationTokenSecret, c.VerificationTokenSecret)
	setString(&config.ResetTokenSecret, c.ResetTokenSecret)

	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.VerificationTokenValidityDuration, c.VerificationTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)

	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)

	setString(&config.NATSURL, c.NATSURL)
	setString(&config.PublicURL, c.PublicURL)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.CookieDomain, c.CookieDomain)
	setString(&config.Environment, c.Environment)
	setString(&config.Logger, c.Logger)
	if c.MaxUploadBytes != nil {
		config.MaxUploadBytes = *c.MaxUploadBytes
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
