package mysql

const qDatabases = `
	SELECT schema_name
	FROM information_schema.schemata
	ORDER BY schema_name`

const qServerVersion = `SELECT VERSION()`

const qSchema = `
	SELECT schema_name
	FROM information_schema.schemata
	WHERE schema_name = ?`

const qTables = `
	SELECT table_name,
	       table_type,
	       COALESCE(table_comment, ''),
	       COALESCE(table_rows, 0)
	FROM information_schema.tables
	WHERE table_schema = ?
	  AND table_type IN ('BASE TABLE', 'SYSTEM VERSIONED')
	ORDER BY table_name`

const qColumns = `
	SELECT column_name,
	       ordinal_position,
	       column_type,
	       is_nullable = 'YES',
	       column_default,
	       character_maximum_length,
	       COALESCE(column_comment, ''),
	       extra LIKE '%auto_increment%'
	FROM information_schema.columns
	WHERE table_schema = ?
	  AND table_name = ?
	ORDER BY ordinal_position`

const qConstraints = `
	SELECT tc.constraint_name,
	       tc.constraint_type,
	       COALESCE(kcu.column_name, ''),
	       COALESCE(kcu.referenced_table_schema, ''),
	       COALESCE(kcu.referenced_table_name, ''),
	       COALESCE(kcu.referenced_column_name, '')
	FROM information_schema.table_constraints tc
	LEFT JOIN information_schema.key_column_usage kcu
	       ON kcu.constraint_schema = tc.constraint_schema
	      AND kcu.constraint_name = tc.constraint_name
	      AND kcu.table_name = tc.table_name
	WHERE tc.table_schema = ?
	  AND tc.table_name = ?
	ORDER BY tc.constraint_name, kcu.ordinal_position`

const qIndexes = `
	SELECT index_name,
	       index_type,
	       COALESCE(column_name, ''),
	       non_unique = 0
	FROM information_schema.statistics
	WHERE table_schema = ?
	  AND table_name = ?
	ORDER BY index_name, seq_in_index`

const qViews = `
	SELECT table_name
	FROM information_schema.views
	WHERE table_schema = ?
	ORDER BY table_name`

const qRoutines = `
	SELECT r.routine_name,
	       r.routine_type,
	       COALESCE(GROUP_CONCAT(
	           CONCAT_WS(' ', p.parameter_mode, p.parameter_name, p.dtd_identifier)
	           ORDER BY p.ordinal_position SEPARATOR ', '), ''),
	       COALESCE(r.dtd_identifier, ''),
	       r.routine_body
	FROM information_schema.routines r
	LEFT JOIN information_schema.parameters p
	       ON p.specific_schema = r.routine_schema
	      AND p.specific_name = r.specific_name
	      AND p.ordinal_position > 0
	WHERE r.routine_schema = ?
	GROUP BY r.routine_name, r.routine_type, r.dtd_identifier, r.routine_body
	ORDER BY r.routine_name`

const qTriggers = `
	SELECT trigger_name,
	       event_object_table,
	       action_timing,
	       event_manipulation
	FROM information_schema.triggers
	WHERE trigger_schema = ?
	ORDER BY event_object_table, trigger_name`
