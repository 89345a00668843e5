package store

import (
	"context"

	"github.com/pkg/errors"
)

const systemSettingSchemaVersion = "schema_version"

type SystemSetting struct {
	Name  string
	Value string
}

type FindSystemSetting struct {
	Name string
}

// GetSchemaVersion returns the schema version recorded in the database, or
// an empty string for a database that has none.
func (s *Store) GetSchemaVersion(ctx context.Context) (string, error) {
	setting, err := s.driver.GetSystemSetting(ctx, &FindSystemSetting{Name: systemSettingSchemaVersion})
	if err != nil {
		return "", errors.Wrap(err, "failed to get schema version")
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

func (s *Store) updateCurrentSchemaVersion(ctx context.Context, schemaVersion string) error {
	if _, err := s.driver.UpsertSystemSetting(ctx, &SystemSetting{
		Name:  systemSettingSchemaVersion,
		Value: schemaVersion,
	}); err != nil {
		return errors.Wrap(err, "failed to upsert schema version")
	}
	return nil
}
