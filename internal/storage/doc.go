// Package storage keeps a history of job runs and an audit trail of daemon
// actions.
//
// It is a sink only: schedules are rebuilt from config on every start and
// never restored from here.
package storage
