package models

// Config is the persisted starlift configuration (~/.starlift/config.yaml).
type Config struct {
	Gateway   Gateway   `yaml:"gateway"`
	Warehouse Warehouse `yaml:"warehouse"`
	Pipeline  Pipeline  `yaml:"pipeline"`
}

// Gateway holds connection settings for the ERP REST gateway.
type Gateway struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // empty when stored in the system keyring
	PageSize int    `yaml:"page_size"`
	Timeout  string `yaml:"timeout"` // e.g. "30s"
}

// Warehouse holds connection settings for the Postgres data warehouse.
type Warehouse struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	Timeout  string `yaml:"timeout"`
}

// Pipeline holds run-level settings.
type Pipeline struct {
	ChecksumFile string `yaml:"checksum_file"` // defaults to ~/.starlift/checksums.json
	LowStock     int    `yaml:"low_stock"`     // report alert threshold, default 10
}
