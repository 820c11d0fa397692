package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# options-lab configuration

[pricing]
# Annual risk-free rate as a fraction (0.05 = 5%)
risk_free_rate = 0.05
# Implied volatility used when no quote supplies one
default_volatility = 0.25

[analysis]
# Payoff curve window as a fraction of spot (0.30 = +/-30%)
payoff_range = 0.30
# Max profit / loss / breakeven search window as a fraction of spot
search_range = 0.5
# Distance between template strikes in currency units
strike_width = 5.0
# Near expiry for template previews and scans
days_to_expiry = 30
# Far expiry for calendar and diagonal templates
far_days = 60
# Concurrent template evaluations during a scan (0 = one per CPU)
scan_workers = 0

[server]
addr = ":8080"
read_timeout = "10s"
write_timeout = "10s"
# Per-request evaluation deadline
request_timeout = "5s"

[ui]
# Enable colored output
color_enabled = true
# Date format (Go reference layout)
date_format = "2006-01-02"

[logging]
# trace, debug, info, warn, error
level = "info"
# Also write a rotating log file
file = false
# Empty means <config dir>/logs/optlab.log
file_path = ""
max_size_mb = 50
max_backups = 5
max_age_days = 30
`

const customTemplatesExample = `# Custom strategy templates. Strikes are expressions in center and width.
#
# [[template]]
# id = "wide-condor"
# name = "Wide Iron Condor"
# outlook = "neutral"
#
#   [[template.legs]]
#   type = "put"
#   action = "buy"
#   strike = "center - 3*width"
#
#   [[template.legs]]
#   type = "put"
#   action = "sell"
#   strike = "center - width"
#
#   [[template.legs]]
#   type = "call"
#   action = "sell"
#   strike = "center + width"
#
#   [[template.legs]]
#   type = "call"
#   action = "buy"
#   strike = "center + 3*width"
`

// createTemplateConfig writes the commented config.toml and an example
// templates.toml next to it. An existing templates.toml is left alone.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName)
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	examples := filepath.Join(configDir, "templates.toml")
	if _, err := os.Stat(examples); os.IsNotExist(err) {
		if err := os.WriteFile(examples, []byte(customTemplatesExample), 0644); err != nil {
			return fmt.Errorf("writing templates example: %w", err)
		}
	}
	return nil
}
