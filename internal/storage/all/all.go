// Package all registers every storage backend. Import it for side effects.
package all

import (
	_ "salescanon/internal/storage/mssql"
	_ "salescanon/internal/storage/postgres"
	_ "salescanon/internal/storage/sqlite"
)
