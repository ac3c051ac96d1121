package ldf

import (
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ModuleKey identifies a digitizer module by its physical location.
type ModuleKey struct {
	Crate uint32
	Slot  uint32
}

// ModuleInfo is the metadata the LDF stream doesn't carry inline per
// event: the module's sampling-rate class, ADC bit depth, and hardware
// revision (§9 "Configuration coupling").
type ModuleInfo struct {
	MSPS             uint32
	ADCResolution    uint32
	HardwareRevision uint32
}

// ModuleConfig maps a module's physical location to its metadata. It is
// read-only for the decoder's lifetime; a missing entry for a
// (crate,slot) encountered in a spill is ErrConfigMiss, a fatal
// configuration error rather than a data error.
type ModuleConfig map[ModuleKey]ModuleInfo

// Lookup returns the ModuleInfo for (crate,slot), or ErrConfigMiss if
// absent.
func (m ModuleConfig) Lookup(crate, slot uint32) (ModuleInfo, error) {
	info, ok := m[ModuleKey{Crate: crate, Slot: slot}]
	if !ok {
		return ModuleInfo{}, &ErrConfigMiss{Crate: crate, Slot: slot}
	}
	return info, nil
}

// moduleConfigEntry is the JSON wire shape for one ModuleConfig row.
type moduleConfigEntry struct {
	Crate            uint32 `json:"crate"`
	Slot             uint32 `json:"slot"`
	MSPS             uint32 `json:"msps"`
	ADCResolution    uint32 `json:"adc_resolution"`
	HardwareRevision uint32 `json:"hardware_revision"`
}

// LoadModuleConfigFile reads a JSON array of module entries into a
// ModuleConfig map.
func LoadModuleConfigFile(filename string) (ModuleConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var entries []moduleConfigEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entriesToConfig(entries), nil
}

// moduleConfigRow is the database row shape scanned by sqlx, mirroring
// the sensor-mapping row shape the teacher's database loader scans.
type moduleConfigRow struct {
	Crate            uint32 `db:"Crate"`
	Slot             uint32 `db:"Slot"`
	MSPS             uint32 `db:"MSPS"`
	ADCResolution    uint32 `db:"ADCResolution"`
	HardwareRevision uint32 `db:"HardwareRevision"`
}

// ConnectModuleConfigDB opens a MySQL connection for module-configuration
// lookups, matching the DSN shape the teacher's ConnectToDatabase builds.
func ConnectModuleConfigDB(user, pass, host, dbname string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s:%s@(%s:3306)/%s?parseTime=true", user, pass, host, dbname)
	return sqlx.Connect("mysql", dsn)
}

// LoadModuleConfigFromDB reads the full (crate,slot) -> module metadata
// table for a run.
func LoadModuleConfigFromDB(db *sqlx.DB, runNumber int) (ModuleConfig, error) {
	query := "SELECT Crate, Slot, MSPS, ADCResolution, HardwareRevision " +
		"FROM ModuleConfig WHERE MinRun <= ? AND MaxRun >= ?"
	rows, err := db.Queryx(query, runNumber, runNumber)
	if err != nil {
		return nil, fmt.Errorf("querying module configuration: %w", err)
	}
	defer rows.Close()

	entries := make([]moduleConfigEntry, 0)
	for rows.Next() {
		var row moduleConfigRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning module configuration row: %w", err)
		}
		entries = append(entries, moduleConfigEntry{
			Crate: row.Crate, Slot: row.Slot, MSPS: row.MSPS,
			ADCResolution: row.ADCResolution, HardwareRevision: row.HardwareRevision,
		})
	}
	return entriesToConfig(entries), nil
}

func entriesToConfig(entries []moduleConfigEntry) ModuleConfig {
	config := make(ModuleConfig, len(entries))
	for _, e := range entries {
		config[ModuleKey{Crate: e.Crate, Slot: e.Slot}] = ModuleInfo{
			MSPS: e.MSPS, ADCResolution: e.ADCResolution, HardwareRevision: e.HardwareRevision,
		}
	}
	return config
}
