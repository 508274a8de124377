// Package postgres implements the relational lineage store: the surrogate-key
// schema, the association resolver queries, and the transactional writer.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS collections (
    cumulus_id  BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    version     TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (name, version)
);

CREATE TABLE IF NOT EXISTS granules (
    cumulus_id            BIGSERIAL PRIMARY KEY,
    granule_id            TEXT NOT NULL,
    collection_cumulus_id BIGINT NOT NULL REFERENCES collections (cumulus_id),
    status                TEXT NOT NULL,
    timestamp             TIMESTAMPTZ,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    published             BOOLEAN NOT NULL DEFAULT FALSE,
    cmr_link              TEXT,
    error                 JSONB,
    UNIQUE (granule_id, collection_cumulus_id)
);
CREATE INDEX IF NOT EXISTS idx_granules_granule_id ON granules (granule_id);
CREATE INDEX IF NOT EXISTS idx_granules_collection ON granules (collection_cumulus_id);

CREATE TABLE IF NOT EXISTS executions (
    cumulus_id    BIGSERIAL PRIMARY KEY,
    arn           TEXT NOT NULL UNIQUE,
    workflow_name TEXT,
    status        TEXT NOT NULL,
    url           TEXT,
    timestamp     TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_executions_workflow_ts ON executions (workflow_name, timestamp DESC);

CREATE TABLE IF NOT EXISTS files (
    cumulus_id         BIGSERIAL PRIMARY KEY,
    granule_cumulus_id BIGINT NOT NULL REFERENCES granules (cumulus_id) ON DELETE CASCADE,
    bucket             TEXT NOT NULL,
    key                TEXT NOT NULL,
    file_name          TEXT,
    file_size          BIGINT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (bucket, key)
);
CREATE INDEX IF NOT EXISTS idx_files_granule ON files (granule_cumulus_id);

CREATE TABLE IF NOT EXISTS granules_executions (
    granule_cumulus_id   BIGINT NOT NULL REFERENCES granules (cumulus_id) ON DELETE CASCADE,
    execution_cumulus_id BIGINT NOT NULL REFERENCES executions (cumulus_id),
    PRIMARY KEY (granule_cumulus_id, execution_cumulus_id)
);
CREATE INDEX IF NOT EXISTS idx_granules_executions_execution ON granules_executions (execution_cumulus_id);
`
