// Package pg provides PostgreSQL connection management, migrations, and
// the relational stores behind the validation pipeline.
//
// Connect creates a pgxpool with retry logic and connection
// verification; Migrate applies the embedded goose migrations through
// the stdlib bridge; Healthcheck returns a ping function for readiness
// probes.
//
// DomainStore implements the pipeline's store contract (domains,
// organizations, operator memberships) and QueueStorage implements the
// queue's storage contract (jobs and dead letters) with
// FOR UPDATE SKIP LOCKED claims. Both honor a pgx.Tx carried in the
// context via WithTx.
//
// Configuration comes from environment variables:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//	pool, err := pg.Connect(ctx, cfg)
package pg
