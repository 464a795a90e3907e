package postgres

const qDatabases = `
	SELECT datname
	FROM pg_database
	WHERE datallowconn
	  AND (NOT datistemplate OR $1)
	ORDER BY datname`

const qServerVersion = `SELECT current_setting('server_version')`

const qSchemas = `
	SELECT nspname
	FROM pg_namespace
	WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	  AND nspname NOT LIKE 'pg\_temp\_%'
	  AND nspname NOT LIKE 'pg\_toast\_temp\_%'
	ORDER BY nspname`

const qTables = `
	SELECT c.relname,
	       CASE c.relkind
	            WHEN 'p' THEN 'PARTITIONED TABLE'
	            WHEN 'f' THEN 'FOREIGN TABLE'
	            ELSE 'BASE TABLE'
	       END,
	       COALESCE(obj_description(c.oid, 'pg_class'), ''),
	       GREATEST(c.reltuples, 0)::bigint
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
	  AND c.relkind IN ('r', 'p', 'f')
	  AND NOT c.relispartition
	ORDER BY c.relname`

const qColumns = `
	SELECT a.attname,
	       a.attnum::int,
	       format_type(a.atttypid, a.atttypmod),
	       NOT a.attnotnull,
	       pg_get_expr(d.adbin, d.adrelid),
	       CASE WHEN t.typname IN ('varchar', 'bpchar') AND a.atttypmod > 4
	            THEN (a.atttypmod - 4)::bigint
	       END,
	       COALESCE(col_description(a.attrelid, a.attnum), ''),
	       a.attidentity <> '' OR COALESCE(pg_get_expr(d.adbin, d.adrelid), '') LIKE 'nextval(%'
	FROM pg_attribute a
	JOIN pg_class c ON c.oid = a.attrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_type t ON t.oid = a.atttypid
	LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
	WHERE n.nspname = $1
	  AND c.relname = $2
	  AND a.attnum > 0
	  AND NOT a.attisdropped
	ORDER BY a.attnum`

const qConstraints = `
	SELECT con.conname,
	       con.contype::text,
	       ARRAY(SELECT a.attname
	             FROM unnest(con.conkey) WITH ORDINALITY AS k(num, ord)
	             JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.num
	             ORDER BY k.ord)::text[],
	       COALESCE(fn.nspname, ''),
	       COALESCE(fc.relname, ''),
	       ARRAY(SELECT a.attname
	             FROM unnest(con.confkey) WITH ORDINALITY AS k(num, ord)
	             JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.num
	             ORDER BY k.ord)::text[],
	       pg_get_constraintdef(con.oid)
	FROM pg_constraint con
	JOIN pg_class c ON c.oid = con.conrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	LEFT JOIN pg_class fc ON fc.oid = con.confrelid
	LEFT JOIN pg_namespace fn ON fn.oid = fc.relnamespace
	WHERE n.nspname = $1
	  AND c.relname = $2
	  AND con.contype IN ('p', 'u', 'f', 'c')
	ORDER BY con.conname`

const qIndexes = `
	SELECT i.relname,
	       am.amname,
	       ARRAY(SELECT pg_get_indexdef(ix.indexrelid, k, true)
	             FROM generate_series(1, ix.indnatts::int) AS k
	             ORDER BY k)::text[],
	       ix.indisunique,
	       ix.indisprimary
	FROM pg_index ix
	JOIN pg_class i ON i.oid = ix.indexrelid
	JOIN pg_class c ON c.oid = ix.indrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_am am ON am.oid = i.relam
	WHERE n.nspname = $1
	  AND c.relname = $2
	ORDER BY i.relname`

const qViews = `
	SELECT c.relname,
	       c.relkind = 'm',
	       COALESCE(obj_description(c.oid, 'pg_class'), '')
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
	  AND c.relkind IN ('v', 'm')
	ORDER BY c.relname`

const qRoutines = `
	SELECT p.proname,
	       CASE p.prokind WHEN 'p' THEN 'PROCEDURE' ELSE 'FUNCTION' END,
	       pg_get_function_identity_arguments(p.oid),
	       COALESCE(pg_get_function_result(p.oid), ''),
	       l.lanname
	FROM pg_proc p
	JOIN pg_namespace n ON n.oid = p.pronamespace
	JOIN pg_language l ON l.oid = p.prolang
	WHERE n.nspname = $1
	  AND p.prokind IN ('f', 'p')
	ORDER BY p.proname, 3`

const qTriggers = `
	SELECT trigger_name,
	       event_object_table,
	       action_timing,
	       string_agg(event_manipulation, ' OR ' ORDER BY event_manipulation)
	FROM information_schema.triggers
	WHERE trigger_schema = $1
	GROUP BY trigger_name, event_object_table, action_timing
	ORDER BY event_object_table, trigger_name`
