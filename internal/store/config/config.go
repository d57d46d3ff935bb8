package config

type Config struct {
	DatabaseDSN string
}
