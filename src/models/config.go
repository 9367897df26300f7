package models

// MConfig Structure
type MConfig struct {
	Name        string           `yaml:"name"`
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	LogLevel    string           `yaml:"log_level"`
	Auth        MAuthConfig      `yaml:"auth"`
	Storage     MStorageConfig   `yaml:"storage"`
	Redis       MRedisConfig     `yaml:"redis"`
	Simulator   MSimulatorConfig `yaml:"simulator"`
	Instruments []MInstrument    `yaml:"instruments"`
}

type MAuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	AuthTimeoutSeconds int    `yaml:"auth_timeout_seconds"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MRedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

type MSimulatorConfig struct {
	UpdateIntervalSeconds int     `yaml:"update_interval_seconds"`
	AlertIntervalSeconds  int     `yaml:"alert_interval_seconds"`
	AlertProbability      float64 `yaml:"alert_probability"`
	MaxSubscriptions      int     `yaml:"max_subscriptions"`
	HistoryDepth          int     `yaml:"history_depth"`
}
