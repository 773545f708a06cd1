package postgresql

import "github.com/dukex/runnr/pkg/persistence/sqlbase"

// The document column is json rather than jsonb: jsonb reorders object
// keys and authored key order must survive a save.
var migrations = []sqlbase.Migration{
	{
		Version:     1,
		Description: "create workflow_slots",
		SQL: `
			CREATE TABLE workflow_slots (
				key VARCHAR(255) PRIMARY KEY,
				document JSON NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	},
}
