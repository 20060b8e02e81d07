/*
Package database provides GORM-based connection pool management with
health checks, statistics and transaction retry.

PoolManager wraps the GORM handle and the underlying sql.DB pool,
controlling idle reclamation and connection limits. A background health
check pings the database periodically and reports through zap.

WithTransaction runs a single transaction; WithTransactionRetry adds
exponential backoff for deadlocks, serialization failures and dropped
connections.
*/
package database
