package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/service/wallet"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultHoldPeriod    = 30 * 24 * time.Hour
	defaultPixTTL        = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultMerchantName  = "CASHBACKMART"
	defaultMerchantCity  = "SAO PAULO"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Delay between payment and cashback becoming available
	HoldPeriod time.Duration

	// PIX charge payment window
	PixTTL time.Duration

	// Receiver of PIX payments shown in generated charges
	PixKey       string
	MerchantName string
	MerchantCity string

	// Withdrawal eligibility rules
	DonationThreshold decimal.Decimal
	MinWithdrawal     decimal.Decimal

	// How often expired charges and matured cashback are settled
	SweepInterval time.Duration

	// Admin account created on startup if both set
	AdminLogin    string
	AdminPassword string

	// OTLP/HTTP collector, telemetry is off when empty
	OtelEndpoint string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		Environment:       defaultEnvironment,
		HoldPeriod:        defaultHoldPeriod,
		PixTTL:            defaultPixTTL,
		MerchantName:      defaultMerchantName,
		MerchantCity:      defaultMerchantCity,
		DonationThreshold: wallet.DefaultDonationThreshold,
		MinWithdrawal:     wallet.DefaultMinWithdrawal,
		SweepInterval:     defaultSweepInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setDecimal := func(o *decimal.Decimal) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := decimal.NewFromString(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"HOLD_PERIOD":        setDuration(&c.HoldPeriod),
		"PIX_TTL":            setDuration(&c.PixTTL),
		"PIX_KEY":            setString(&c.PixKey),
		"MERCHANT_NAME":      setString(&c.MerchantName),
		"MERCHANT_CITY":      setString(&c.MerchantCity),
		"DONATION_THRESHOLD": setDecimal(&c.DonationThreshold),
		"MIN_WITHDRAWAL":     setDecimal(&c.MinWithdrawal),
		"SWEEP_INTERVAL":     setDuration(&c.SweepInterval),
		"ADMIN_LOGIN":        setString(&c.AdminLogin),
		"ADMIN_PASSWORD":     setString(&c.AdminPassword),
		"OTEL_ENDPOINT":      setString(&c.OtelEndpoint),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("cashbackmart", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.HoldPeriod, "hold-period", c.HoldPeriod, "Cashback hold period after payment")
	fs.DurationVar(&c.PixTTL, "pix-ttl", c.PixTTL, "PIX charge payment window")
	fs.StringVarP(&c.PixKey, "pix-key", "p", c.PixKey, "PIX key receiving payments")
	fs.StringVar(&c.MerchantName, "merchant-name", c.MerchantName, "Merchant name in PIX charges")
	fs.StringVar(&c.MerchantCity, "merchant-city", c.MerchantCity, "Merchant city in PIX charges")
	fs.Var((*decimalValue)(&c.DonationThreshold), "donation-threshold", "Donated share of total balance required to withdraw")
	fs.Var((*decimalValue)(&c.MinWithdrawal), "min-withdrawal", "Available balance required to withdraw")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Background settlement interval")
	fs.StringVar(&c.AdminLogin, "admin-login", c.AdminLogin, "Admin account login")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Admin account password")
	fs.StringVar(&c.OtelEndpoint, "otel-endpoint", c.OtelEndpoint, "OTLP/HTTP collector host:port")

	return fs.Parse(args)
}

// pflag.Value over decimal.Decimal
type decimalValue decimal.Decimal

func (d *decimalValue) String() string { return decimal.Decimal(*d).String() }
func (d *decimalValue) Type() string   { return "decimal" }

func (d *decimalValue) Set(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*d = decimalValue(v)
	return nil
}
