package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docvault/internal/flagx"
	"github.com/dmitrijs2005/docvault/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration
// so both "200ms" and integer nanoseconds are accepted.
type JsonConfig struct {
	DatabaseDSN          string         `json:"database_dsn"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	StoragePrefix        string         `json:"storage_prefix"`
	LedgerEndpoint       string         `json:"ledger_endpoint"`
	LedgerCommitment     string         `json:"ledger_commitment"`
	ProgramID            string         `json:"program_id"`
	LedgerRetryAttempts  *uint64        `json:"ledger_retry_attempts"`
	LedgerRetryBaseDelay timex.Duration `json:"ledger_retry_base_delay"`
	FaucetMnemonic       string         `json:"faucet_mnemonic"`
	LogBackend           string         `json:"log_backend"`
}

// parseJson overlays values from the JSON file named by -c/-config (or the
// DOCVAULT_CONFIG environment variable). Fields absent from the file keep
// their current value. An unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.StoragePrefix, c.StoragePrefix)
	setString(&config.LedgerEndpoint, c.LedgerEndpoint)
	setString(&config.LedgerCommitment, c.LedgerCommitment)
	setString(&config.ProgramID, c.ProgramID)
	setString(&config.FaucetMnemonic, c.FaucetMnemonic)
	setString(&config.LogBackend, c.LogBackend)

	if c.LedgerRetryAttempts != nil {
		config.LedgerRetryAttempts = *c.LedgerRetryAttempts
	}
	if c.LedgerRetryBaseDelay.Duration > 0 {
		config.LedgerRetryBaseDelay = c.LedgerRetryBaseDelay.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
