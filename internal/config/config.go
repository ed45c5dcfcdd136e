package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = ":9090"
	defaultRunMode     = "unattended"
	defaultCloud       = "AzurePublicCloud"
	defaultSettleDelay = 200 * time.Millisecond
)

type Config struct {
	TenantID string
	RunMode  string `validate:"oneof=interactive unattended"`
	Cloud    string `validate:"oneof=AzurePublicCloud AzureUSGovernment AzureChinaCloud"`

	FileShareCron string `validate:"required_if=RequireSchedules true"`
	SecretsCron   string `validate:"required_if=RequireSchedules true"`

	TelemetryConnectionString string
	TelemetryInstrumentation  string
	TelemetrySettleDelay      time.Duration `validate:"gte=0,lte=10s"`

	GraphBaseURL string `validate:"omitempty,url"`
	HTTPAddr     string `validate:"required"`
	MetricsAddr  string

	RequireSchedules bool
}

type LoadOptions struct {
	// RequireSchedules makes both cron expressions mandatory.
	RequireSchedules bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireSchedules: true})
}

func LoadOneOff() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireSchedules: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		TenantID:                  strings.TrimSpace(os.Getenv("AZURE_TENANT_ID")),
		RunMode:                   strings.ToLower(strings.TrimSpace(getenvDefault("RUN_MODE", defaultRunMode))),
		Cloud:                     strings.TrimSpace(getenvDefault("AZURE_CLOUD", defaultCloud)),
		FileShareCron:             strings.TrimSpace(getenvFirst("FILE_SHARE_SPACE_MONITORING_CRON", "FileShareSpaceMonitoringCron")),
		SecretsCron:               strings.TrimSpace(getenvFirst("GRAPH_SECRETS_CRON", "GraphSecretsCron")),
		TelemetryConnectionString: strings.TrimSpace(os.Getenv("APPLICATIONINSIGHTS_CONNECTION_STRING")),
		TelemetryInstrumentation:  strings.TrimSpace(os.Getenv("APPINSIGHTS_INSTRUMENTATIONKEY")),
		TelemetrySettleDelay:      defaultSettleDelay,
		GraphBaseURL:              strings.TrimSpace(os.Getenv("GRAPH_BASE_URL")),
		HTTPAddr:                  getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:               getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		RequireSchedules:          opts.RequireSchedules,
	}

	var msgs []string
	if v := strings.TrimSpace(os.Getenv("TELEMETRY_SETTLE_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			msgs = append(msgs, "TELEMETRY_SETTLE_DELAY is invalid")
		} else {
			cfg.TelemetrySettleDelay = d
		}
	}

	if err := validate.Struct(cfg); err != nil {
		verr := describeValidation(err)
		if len(msgs) == 0 {
			return cfg, verr
		}
		msgs = append(msgs, verr.Error())
	}
	if len(msgs) > 0 {
		return cfg, errors.New(strings.Join(msgs, "; "))
	}
	return cfg, nil
}

var validate = validator.New()

var envNames = map[string]string{
	"RunMode":              "RUN_MODE",
	"Cloud":                "AZURE_CLOUD",
	"FileShareCron":        "FILE_SHARE_SPACE_MONITORING_CRON",
	"SecretsCron":          "GRAPH_SECRETS_CRON",
	"TelemetrySettleDelay": "TELEMETRY_SETTLE_DELAY",
	"GraphBaseURL":         "GRAPH_BASE_URL",
	"HTTPAddr":             "HTTP_ADDR",
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, name+" is required")
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be between 0s and 10s", name))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", name, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFirst(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
