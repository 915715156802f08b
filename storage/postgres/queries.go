package postgres

const (
	upsertBlock = `
		INSERT INTO blocks (
			"number", "timestamp", hash, parent_hash, extrinsics_root, state_root,
			is_finalized, validator, spec_version,
			hash_bytes, parent_hash_bytes, extrinsics_root_bytes, state_root_bytes, validator_bytes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT ("number") DO UPDATE
			SET
				"timestamp" = excluded."timestamp",
				hash = excluded.hash,
				parent_hash = excluded.parent_hash,
				extrinsics_root = excluded.extrinsics_root,
				state_root = excluded.state_root,
				is_finalized = excluded.is_finalized,
				validator = excluded.validator,
				spec_version = excluded.spec_version,
				hash_bytes = excluded.hash_bytes,
				parent_hash_bytes = excluded.parent_hash_bytes,
				extrinsics_root_bytes = excluded.extrinsics_root_bytes,
				state_root_bytes = excluded.state_root_bytes,
				validator_bytes = excluded.validator_bytes`

	upsertBlockLog = `
		INSERT INTO block_logs (id, block_number, "type", "data", engine)
			VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
			SET
				block_number = excluded.block_number,
				"type" = excluded."type",
				"data" = excluded."data",
				engine = excluded.engine`

	upsertExtrinsic = `
		INSERT INTO extrinsics (
			id, block_number, block_timestamp, extrinsic_hash, is_signed, signer,
			mod_name, call_name, result, call_params, extrinsic_hash_bytes, signer_bytes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
			SET
				block_number = excluded.block_number,
				block_timestamp = excluded.block_timestamp,
				extrinsic_hash = excluded.extrinsic_hash,
				is_signed = excluded.is_signed,
				signer = excluded.signer,
				mod_name = excluded.mod_name,
				call_name = excluded.call_name,
				result = excluded.result,
				call_params = excluded.call_params,
				extrinsic_hash_bytes = excluded.extrinsic_hash_bytes,
				signer_bytes = excluded.signer_bytes`

	upsertEvent = `
		INSERT INTO events (
			id, block_number, block_timestamp, extrinsic_id, extrinsic_index, extrinsic_hash,
			mod_name, event_name, event_index, phase, "values"
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
			SET
				block_number = excluded.block_number,
				block_timestamp = excluded.block_timestamp,
				extrinsic_id = excluded.extrinsic_id,
				extrinsic_index = excluded.extrinsic_index,
				extrinsic_hash = excluded.extrinsic_hash,
				mod_name = excluded.mod_name,
				event_name = excluded.event_name,
				event_index = excluded.event_index,
				phase = excluded.phase,
				"values" = excluded."values"`

	listTables = `
		SELECT schemaname::text, tablename::text
			FROM pg_tables
			WHERE schemaname != 'information_schema' AND schemaname NOT LIKE 'pg_%'`

	listColumns = `
		SELECT table_schema::text, table_name::text, column_name::text, data_type::text, is_nullable::text = 'YES'
			FROM information_schema.columns
			WHERE table_schema != 'information_schema' AND table_schema NOT LIKE 'pg_%'
		ORDER BY table_schema, table_name, ordinal_position`
)
