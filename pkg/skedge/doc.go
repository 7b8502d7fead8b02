// Package skedge is a single-process periodic job scheduler.
//
// Jobs are described with a fluent builder and registered with a Scheduler:
//
//	s := skedge.New()
//	_ = s.Every(10).Seconds().Run(s, ping)
//	_ = s.EverySingle().Wednesday().At("13:15").Tag("report").Run(s, report)
//
// The host application drives the schedule by calling RunPending periodically.
// Work runs synchronously inside that call:
//   - No goroutines are started by this package
//   - A Scheduler is not safe for concurrent use
//   - A long-running job delays every other job
package skedge
