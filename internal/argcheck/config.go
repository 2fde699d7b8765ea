package argcheck

import (
	"exo/internal/config"
	"exo/internal/errcode"
)

// ConfigField validates that field names a declared field of cfg
// (ArgumentProcessor ConfigFieldA), returning its declared type.
func ConfigField(i int, argName, op string, cfg *config.Config, field string) (config.FieldType, error) {
	ft, err := cfg.Lookup(field)
	if err != nil {
		return 0, errcode.Argument(i, argName, op, "'"+field+"' is not a field of config '"+cfg.Name+"'")
	}
	return ft, nil
}
