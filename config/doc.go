// Package config loads guardrail settings from YAML files.
//
// A file declares one dependency block per protected downstream, plus
// optional health monitor thresholds:
//
//	dependencies:
//	  payments:
//	    max_connections: 10
//	    pool_timeout: 5s
//	    operation_timeout: 30s
//	    max_attempts: 3
//	    base_delay: 100ms
//	    max_delay: 30s
//	    failure_threshold: 5
//	    recovery_timeout: 60s
//	    monitoring_period: 60s
//	health:
//	  interval: 10s
//	  warning_utilization: 75
//	  critical_utilization: 90
//	gateway:
//	  base_url: ${PAYMENT_SERVICE_URL}
//	  api_key: ${PAYMENT_API_KEY}
//	  requests_per_second: 50
//	memberdb:
//	  addr: ${MEMBERDB_ADDR}
//
// Omitted fields fall back to the guard package defaults. Durations use
// time.ParseDuration syntax. ${VAR} references resolve from the
// environment at load time and fail loudly when the variable is unset, so
// secrets never need to live in the file itself.
package config
